package sqlinline

const QSelectSubscriptionByUser = `--sql d70aed73-09f8-470f-b3df-22a5342c02ff
select
    user_id,
    plan,
    status,
    coalesce(stripe_customer_id, ''),
    coalesce(stripe_subscription_id, ''),
    coalesce(stripe_price_id, ''),
    current_period_end,
    created_at,
    updated_at
from subscriptions
where user_id = $1::text
limit 1;
`

// QLockSubscriptionByUser serializes admissions for one user until the
// surrounding transaction ends.
const QLockSubscriptionByUser = `--sql 83f1c881-8da9-48eb-a326-36038988cf30
select
    user_id,
    plan,
    status,
    coalesce(stripe_customer_id, ''),
    coalesce(stripe_subscription_id, ''),
    coalesce(stripe_price_id, ''),
    current_period_end,
    created_at,
    updated_at
from subscriptions
where user_id = $1::text
for update;
`

const QEnsureFreeSubscription = `--sql 4c9770a6-87a8-49ca-beac-8fe6c069eb42
with inserted as (
    insert into subscriptions (user_id, plan, status, created_at, updated_at)
    values ($1::text, 'free', 'active', now(), now())
    on conflict (user_id) do nothing
    returning user_id, plan, status, stripe_customer_id, stripe_subscription_id, stripe_price_id, current_period_end, created_at, updated_at
),
current as (
    select user_id, plan, status, stripe_customer_id, stripe_subscription_id, stripe_price_id, current_period_end, created_at, updated_at
    from inserted
    union all
    select user_id, plan, status, stripe_customer_id, stripe_subscription_id, stripe_price_id, current_period_end, created_at, updated_at
    from subscriptions
    where user_id = $1::text
      and not exists (select 1 from inserted)
)
select
    user_id,
    plan,
    status,
    coalesce(stripe_customer_id, ''),
    coalesce(stripe_subscription_id, ''),
    coalesce(stripe_price_id, ''),
    current_period_end,
    created_at,
    updated_at
from current
limit 1;
`

const QUpsertCheckoutSubscription = `--sql 1b5383b6-eeb9-4ed0-9397-191254260926
insert into subscriptions (
    user_id,
    plan,
    status,
    stripe_customer_id,
    stripe_subscription_id,
    stripe_price_id,
    current_period_end,
    created_at,
    updated_at
) values (
    $1::text,
    $2::text,
    coalesce(nullif($7::text, ''), 'active'),
    nullif($3::text, ''),
    nullif($4::text, ''),
    nullif($5::text, ''),
    $6::timestamptz,
    now(),
    now()
)
on conflict (user_id) do update set
    plan = excluded.plan,
    status = excluded.status,
    stripe_customer_id = coalesce(excluded.stripe_customer_id, subscriptions.stripe_customer_id),
    stripe_subscription_id = coalesce(excluded.stripe_subscription_id, subscriptions.stripe_subscription_id),
    stripe_price_id = coalesce(excluded.stripe_price_id, subscriptions.stripe_price_id),
    current_period_end = coalesce(excluded.current_period_end, subscriptions.current_period_end),
    updated_at = now()
returning
    user_id,
    plan,
    status,
    coalesce(stripe_customer_id, ''),
    coalesce(stripe_subscription_id, ''),
    coalesce(stripe_price_id, ''),
    current_period_end,
    created_at,
    updated_at;
`

const QUpdateSubscriptionStatus = `--sql 20b66070-62ba-42d5-8048-f5c4d5b0099e
update subscriptions set
    status = $2::text,
    current_period_end = coalesce($3::timestamptz, current_period_end),
    updated_at = now()
where stripe_subscription_id = $1::text;
`

const QCancelSubscription = `--sql 2c40d45f-49bf-403b-bb46-9afa97290936
update subscriptions set
    plan = 'free',
    status = 'cancelled',
    updated_at = now()
where stripe_subscription_id = $1::text;
`

const QMarkSubscriptionPastDue = `--sql cfc63d47-b8c3-4282-8cd9-ea6335cf3d17
update subscriptions set
    status = 'past_due',
    updated_at = now()
where stripe_subscription_id = $1::text;
`
