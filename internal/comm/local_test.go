package comm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

func TestLocalWorld_PerSourceOrder(t *testing.T) {
	ctx := context.Background()
	w := NewLocalWorld(2)

	for i := 0; i < 5; i++ {
		require.NoError(t, w[0].Send(ctx, 1, 7, []byte{byte(i)}))
	}
	for i := 0; i < 5; i++ {
		m, err := w[1].Recv(ctx, 0, 7)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, m.Data)
		require.Equal(t, 0, m.Source)
	}
}

func TestLocalWorld_TagMatching(t *testing.T) {
	ctx := context.Background()
	w := NewLocalWorld(3)

	require.NoError(t, w[0].Send(ctx, 2, 1, []byte("a")))
	require.NoError(t, w[1].Send(ctx, 2, 2, []byte("b")))
	require.NoError(t, w[0].Send(ctx, 2, 2, []byte("c")))

	m, err := w[2].Recv(ctx, AnySource, 2)
	require.NoError(t, err)
	require.Equal(t, "b", string(m.Data))

	m, err = w[2].Recv(ctx, 0, AnyTag)
	require.NoError(t, err)
	require.Equal(t, "a", string(m.Data))

	require.True(t, w[2].Probe(0, 2))
	require.False(t, w[2].Probe(1, AnyTag))

	m, err = w[2].Recv(ctx, AnySource, AnyTag)
	require.NoError(t, err)
	require.Equal(t, "c", string(m.Data))

	require.Equal(t, Stats{Sent: 0, Received: 3}, w[2].Stats())
	require.Equal(t, int64(2), w[0].Stats().Sent)
}

func TestLocalWorld_SendCopiesData(t *testing.T) {
	ctx := context.Background()
	w := NewLocalWorld(2)

	buf := []byte("abc")
	require.NoError(t, w[0].Send(ctx, 1, 0, buf))
	buf[0] = 'x'

	m, err := w[1].Recv(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "abc", string(m.Data))
}

func TestLocalWorld_InvalidRank(t *testing.T) {
	ctx := context.Background()
	w := NewLocalWorld(2)

	err := w[0].Send(ctx, 2, 0, nil)
	require.ErrorIs(t, err, domain.ErrInvalidRank)

	_, err = w[0].Recv(ctx, -2, 0)
	require.ErrorIs(t, err, domain.ErrInvalidRank)
}

func TestLocalWorld_RecvHonorsContext(t *testing.T) {
	w := NewLocalWorld(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w[0].Recv(ctx, 1, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalWorld_Close(t *testing.T) {
	ctx := context.Background()
	w := NewLocalWorld(2)
	require.NoError(t, w[1].Close())

	err := w[0].Send(ctx, 1, 0, nil)
	require.True(t, IsClosed(err))

	_, err = w[1].Recv(ctx, 0, 0)
	require.True(t, IsClosed(err))
}

func TestRequest_Test(t *testing.T) {
	r := newRequest()
	done, err := r.Test()
	require.False(t, done)
	require.NoError(t, err)

	r.complete(nil)
	done, err = r.Test()
	require.True(t, done)
	require.NoError(t, err)
	require.NoError(t, r.Wait(context.Background()))
}
