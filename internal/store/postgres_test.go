// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quizhub/quizhub/pkg/errutil"
)

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), "not a url at all\x00")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestNewPool_UnreachableDatabase(t *testing.T) {
	// Cancelled context stops the ping retry loop immediately instead of
	// waiting out the backoff schedule.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPool(ctx, "postgres://localhost:1/quizhub")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}
