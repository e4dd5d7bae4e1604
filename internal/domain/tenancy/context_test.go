package tenancy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/mfgerp/internal/domain/shared"
)

func int64Ptr(v int64) *int64 { return &v }

func TestNew(t *testing.T) {
	t.Run("keeps positive branch", func(t *testing.T) {
		tc := New(7, int64Ptr(2), 11)
		require.True(t, tc.HasBranch())
		assert.Equal(t, int64(2), tc.Branch())
		assert.Equal(t, "tenant=7 branch=2", tc.String())
	})

	t.Run("drops zero branch", func(t *testing.T) {
		tc := New(7, int64Ptr(0), 11)
		assert.False(t, tc.HasBranch())
		assert.Equal(t, "tenant=7", tc.String())
	})

	t.Run("copies branch pointer", func(t *testing.T) {
		b := int64(3)
		tc := New(7, &b, 11)
		b = 99
		assert.Equal(t, int64(3), tc.Branch())
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New(1, nil, 0).Validate())
	assert.True(t, errors.Is(Context{}.Validate(), shared.ErrMissingTenant))
	assert.True(t, errors.Is(New(-4, nil, 1).Validate(), shared.ErrMissingTenant))
}

func TestWithoutBranch(t *testing.T) {
	tc := New(5, int64Ptr(9), 1)
	wide := tc.WithoutBranch()
	assert.False(t, wide.HasBranch())
	assert.True(t, tc.HasBranch())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithContext(context.Background(), New(3, nil, 8))
	tc, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), tc.TenantID)
	assert.Equal(t, int64(8), tc.ActorID)

	_, err := MustFromContext(context.Background())
	assert.True(t, errors.Is(err, shared.ErrMissingTenant))

	_, err = MustFromContext(WithContext(context.Background(), Context{}))
	assert.True(t, errors.Is(err, shared.ErrMissingTenant))
}

func TestContextIsolationAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(tenant int64) {
			defer wg.Done()
			ctx := WithContext(context.Background(), New(tenant, nil, tenant))
			got, _ := FromContext(ctx)
			if got.TenantID != tenant {
				errs <- errors.New("tenant leaked between requests")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestResolveBranchHeader(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    *int64
		wantErr bool
	}{
		{name: "none", headers: map[string]string{}, want: nil},
		{name: "dash form", headers: map[string]string{"Company-Branch-Id": "4"}, want: int64Ptr(4)},
		{name: "underscore form", headers: map[string]string{"company_branch_id": "5"}, want: int64Ptr(5)},
		{name: "x header", headers: map[string]string{"X-Branch-Id": "6"}, want: int64Ptr(6)},
		{
			name:    "priority order",
			headers: map[string]string{"x-branch-id": "6", "company-branch-id": "4"},
			want:    int64Ptr(4),
		},
		{
			name:    "empty value falls through",
			headers: map[string]string{"company-branch-id": " ", "x-branch-id": "6"},
			want:    int64Ptr(6),
		},
		{name: "not numeric", headers: map[string]string{"x-branch-id": "abc"}, wantErr: true},
		{name: "negative", headers: map[string]string{"x-branch-id": "-2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h[k] = []string{v}
			}
			got, err := ResolveBranchHeader(func(name string) string {
				if v := h.Get(name); v != "" {
					return v
				}
				// underscores are not canonicalised by net/http
				if vs, ok := h[name]; ok && len(vs) > 0 {
					return vs[0]
				}
				return ""
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
