/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package runqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunQueue_Ordering(t *testing.T) {
	q := New("test")

	var mu sync.Mutex
	var got []int

	var wg sync.WaitGroup
	wg.Add(256)
	for i := 0; i < 256; i++ {
		i := i
		q.Run(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, got, 256)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestRunQueue_Stop(t *testing.T) {
	q := New("test")

	ran := make(chan struct{})
	stopped := make(chan struct{})
	q.Run(func() { close(ran) })
	q.Stop(func() { close(stopped) })

	<-ran
	<-stopped

	// posting after stop is a no-op
	q.Run(func() { t.Error("executed after stop") })
	time.Sleep(time.Millisecond * 50)
}

func TestRunQueue_PanicRecovery(t *testing.T) {
	q := New("test")

	done := make(chan struct{})
	q.Run(func() { panic("boom") })
	q.Run(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue did not survive a panicking function")
	}
}
