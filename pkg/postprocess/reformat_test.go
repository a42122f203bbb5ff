package postprocess_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelFunc func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error)

func (f modelFunc) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	return f(ctx, req)
}

const raw = "💳 Visa Gold\nЖылдык тейлөө: 1500 сом"

func TestReformat_Success(t *testing.T) {
	var got domain.ModelRequest
	r := postprocess.New(modelFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		got = req
		return domain.ModelResponse{Text: "  - **Visa Gold**: annual fee 1,500 KGS\n"}, nil
	}))

	out := r.Reformat(context.Background(), raw, domain.English)
	assert.Equal(t, "- **Visa Gold**: annual fee 1,500 KGS", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "English")
	assert.Equal(t, raw, got.Messages[1].Content)
	assert.Empty(t, got.Tools)
}

func TestReformat_SilentDegrade(t *testing.T) {
	tests := []struct {
		name  string
		model modelFunc
	}{
		{"Error", func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
			return domain.ModelResponse{}, errors.New("quota exceeded")
		}},
		{"EmptyText", func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
			return domain.ModelResponse{Text: "  "}, nil
		}},
		{"CallInsteadOfText", func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
			return domain.ModelResponse{Text: "x", Calls: []domain.CallProposal{{Name: "get_balance"}}}, nil
		}},
		{"Panic", func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
			panic("backend bug")
		}},
		{"Timeout", func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
			<-ctx.Done()
			return domain.ModelResponse{}, ctx.Err()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := postprocess.New(tt.model, postprocess.WithTimeout(20*time.Millisecond))
			assert.Equal(t, raw, r.Reformat(context.Background(), raw, domain.Russian))
		})
	}
}

func TestReformat_SkipsBlankInput(t *testing.T) {
	called := false
	r := postprocess.New(modelFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		called = true
		return domain.ModelResponse{Text: "x"}, nil
	}))
	assert.Equal(t, "", r.Reformat(context.Background(), "", domain.Kyrgyz))
	assert.False(t, called)
}
