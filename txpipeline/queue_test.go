/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueDrainTopDescending(t *testing.T) {
	q := NewQueue(10)
	q.Submit(QueuedTx{Priority: 5})
	q.Submit(QueuedTx{Priority: 50})
	q.Submit(QueuedTx{Priority: 20})

	top := q.DrainTop(3)
	require.Equal(t, []uint64{50, 20, 5}, []uint64{top[0].Priority, top[1].Priority, top[2].Priority})
}

func TestQueueFullRejectsLowerOrEqualPriority(t *testing.T) {
	q := NewQueue(2)
	require.True(t, q.Submit(QueuedTx{Priority: 100}))
	require.True(t, q.Submit(QueuedTx{Priority: 200}))

	require.False(t, q.Submit(QueuedTx{Priority: 100})) // not strictly greater than current min (100)
	require.Equal(t, 2, q.Len())

	require.True(t, q.Submit(QueuedTx{Priority: 150})) // strictly greater than min 100: evicts it
	top := q.DrainTop(2)
	require.Equal(t, uint64(200), top[0].Priority)
	require.Equal(t, uint64(150), top[1].Priority)
}

func TestQueueCapacityTwoScenario(t *testing.T) {
	// capacity 2, insert 100 then 200, drain(1) returns 200.
	q := NewQueue(2)
	q.Submit(QueuedTx{Priority: 100})
	q.Submit(QueuedTx{Priority: 200})
	top := q.DrainTop(1)
	require.Len(t, top, 1)
	require.Equal(t, uint64(200), top[0].Priority)
}
