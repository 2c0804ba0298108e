package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

const (
	mockImageURL = "https://picsum.photos/1024/1024?random=%s"
	mockVideoURL = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"
)

// Mock returns placeholder assets without any remote call.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Kind() Kind { return KindMock }

func (m *Mock) Supports(rt domain.ResourceType) bool {
	return rt == domain.ResourceImage || rt == domain.ResourceVideo
}

func (m *Mock) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr(KindMock, "generate", err)
	}
	id := uuid.NewString()
	switch req.Type {
	case domain.ResourceImage:
		seed := strings.ReplaceAll(id, "-", "")[:12]
		return &Result{ID: id, Asset: domain.Asset{Kind: domain.AssetKindURL, Value: fmt.Sprintf(mockImageURL, seed), MIME: "image/jpeg"}}, nil
	case domain.ResourceVideo:
		return &Result{ID: id, Asset: domain.Asset{Kind: domain.AssetKindURL, Value: mockVideoURL, MIME: "video/mp4"}}, nil
	default:
		return nil, providerErr(KindMock, "unsupported resource type %q", req.Type)
	}
}
