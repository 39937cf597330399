// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellZeroValue(t *testing.T) {
	chk := require.New(t)
	var c Cell[int]

	value, ch := c.Load()
	chk.Equal(0, value)
	chk.NotNil(ch)
	chk.Equal(0, c.Get())
}

func TestCellStore(t *testing.T) {
	chk := require.New(t)
	var c Cell[string]

	c.Store("downloading")
	chk.Equal("downloading", c.Get())

	c.Store("processing")
	chk.Equal("processing", c.Get())
}

func TestCellChangeNotification(t *testing.T) {
	chk := require.New(t)
	var c Cell[int]

	_, ch1 := c.Load()
	c.Store(1)

	select {
	case <-ch1:
	default:
		chk.Fail("expected change channel to be closed after Store")
	}

	_, ch2 := c.Load()
	select {
	case <-ch2:
		chk.Fail("did not expect fresh change channel to be closed")
	default:
	}

	c.Store(2)
	select {
	case <-ch2:
	default:
		chk.Fail("expected second change channel to be closed after Store")
	}
}

func TestCellAliasedChannels(t *testing.T) {
	chk := require.New(t)
	var c Cell[int]

	_, ch1 := c.Load()
	_, ch2 := c.Load()
	chk.Equal(ch1, ch2, "loads between stores must share one change channel")

	c.Store(5)
	_, ch3 := c.Load()
	chk.NotEqual(ch1, ch3, "a store must install a fresh change channel")
}

func TestCellConcurrentReaders(t *testing.T) {
	chk := require.New(t)
	var c Cell[int]

	const readers = 8
	var wg sync.WaitGroup
	woke := make(chan int, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ch := c.Load()
			if v != 0 {
				// The store already happened; nothing to wait for.
				woke <- v
				return
			}
			<-ch
			woke <- c.Get()
		}()
	}

	c.Store(42)
	wg.Wait()
	close(woke)
	for v := range woke {
		chk.Equal(42, v)
	}
}
