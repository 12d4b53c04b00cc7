package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pasarmarket/pkg/errors"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{status.Error(codes.NotFound, "gone"), errors.CodeNotFound},
		{status.Error(codes.AlreadyExists, "dup"), errors.CodeAlreadyExists},
		{status.Error(codes.Unavailable, "down"), errors.CodeStorageUnavailable},
		{status.Error(codes.Aborted, "contention"), errors.CodeStorageUnavailable},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), errors.CodeStorageUnavailable},
		{status.Error(codes.PermissionDenied, "rules"), errors.CodeInternal},
		{errors.InsufficientStock("sold"), errors.CodeInsufficientStock},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, errors.Code(mapError(tc.err, "Thing")), "%v", tc.err)
	}
	assert.NoError(t, mapError(nil, "Thing"))
}

func TestPaginate(t *testing.T) {
	start, end := paginate(10, 3, 9)
	assert.Equal(t, 9, start)
	assert.Equal(t, 10, end)

	start, end = paginate(10, 3, 20)
	assert.Equal(t, start, end)

	start, end = paginate(10, 0, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)
}
