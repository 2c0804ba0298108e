package repo

import (
	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Runner is what the Postgres store needs from infra.SQLRunner.
type Runner interface {
	infra.SQLExecutor
	infra.TxRunner
}

// Store bundles the PostgreSQL repositories.
type Store struct {
	users         *UserRepositoryPG
	subscriptions *SubscriptionRepositoryPG
	ledger        *LedgerRepositoryPG
}

// NewStore wires every repository to one runner.
func NewStore(r Runner) *Store {
	return &Store{
		users:         NewUserRepository(r),
		subscriptions: NewSubscriptionRepository(r),
		ledger:        NewLedgerRepository(r, r),
	}
}

func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Subscriptions() domain.SubscriptionRepository { return s.subscriptions }
func (s *Store) Ledger() domain.LedgerRepository              { return s.ledger }

var _ domain.Store = (*Store)(nil)
