package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/almarpuit/site/internal/repositories"
)

func TestWrapErrorClassifies(t *testing.T) {
	require.True(t, repositories.IsNotFound(WrapError("get", status.Error(codes.NotFound, "x"))))
	require.True(t, repositories.IsConflict(WrapError("create", status.Error(codes.AlreadyExists, "x"))))
	require.True(t, repositories.IsUnavailable(WrapError("get", status.Error(codes.Unavailable, "x"))))
	require.True(t, repositories.IsUnavailable(WrapError("get", context.DeadlineExceeded)))
	require.ErrorIs(t, WrapError("get", context.Canceled), context.Canceled)
	require.Nil(t, WrapError("get", nil))

	wrapped := WrapError("get", status.Error(codes.NotFound, "x"))
	require.Same(t, wrapped, WrapError("again", wrapped))
	require.False(t, repositories.IsNotFound(WrapError("get", errors.New("plain"))))
}
