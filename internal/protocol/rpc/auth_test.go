package rpc

import (
	"strings"
	"testing"

	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthSys(t *testing.T) {
	t.Run("LengthIncludesPadding", func(t *testing.T) {
		tests := []struct {
			hostname string
			aux      []uint32
			length   int
		}{
			{"", nil, 20},
			{"iPXE", nil, 24},
			{"host1", nil, 28},
			{"testhost", []uint32{4, 24, 27, 30}, 44},
		}

		for _, tt := range tests {
			a, err := NewAuthSys(1000, 1000, tt.hostname, tt.aux...)
			require.NoError(t, err)
			assert.Equal(t, tt.length, a.Length(), "hostname %q", tt.hostname)
			assert.Equal(t, tt.length+8, EncodedSize(a))
		}
	})

	t.Run("RejectsLongHostname", func(t *testing.T) {
		_, err := NewAuthSys(0, 0, strings.Repeat("h", MaxMachineNameLength+1))
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("RejectsTooManyGroups", func(t *testing.T) {
		_, err := NewAuthSys(0, 0, "host", make([]uint32, MaxAuxGIDs+1)...)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("CopiesGroupSlice", func(t *testing.T) {
		gids := []uint32{1, 2}
		a, err := NewAuthSys(0, 0, "host", gids...)
		require.NoError(t, err)
		gids[0] = 99
		assert.Equal(t, []uint32{1, 2}, a.AuxGIDs)
	})
}

func TestCredentialRoundTrip(t *testing.T) {
	t.Run("AuthNone", func(t *testing.T) {
		b := xdr.NewBuffer(0, 8)
		n := PutCredential(b, AuthNone{})
		assert.Equal(t, 8, n)
		assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, b.Bytes())

		cred, err := GetCredential(b)
		require.NoError(t, err)
		assert.Equal(t, AuthNone{}, cred)
		assert.Equal(t, 0, b.Len())
	})

	t.Run("AuthSys", func(t *testing.T) {
		orig, err := NewAuthSys(1000, 100, "host1", 4, 24)
		require.NoError(t, err)

		b := xdr.NewBuffer(0, 0)
		n := PutCredential(b, orig)
		assert.Equal(t, EncodedSize(orig), n)
		assert.Equal(t, n, b.Len())

		got, err := GetCredential(b)
		require.NoError(t, err)
		sys, ok := got.(*AuthSys)
		require.True(t, ok)
		assert.Equal(t, orig.Hostname, sys.Hostname)
		assert.Equal(t, orig.UID, sys.UID)
		assert.Equal(t, orig.GID, sys.GID)
		assert.Equal(t, orig.AuxGIDs, sys.AuxGIDs)
		assert.Equal(t, orig.Length(), sys.Length())
		assert.Equal(t, 0, b.Len())
	})

	t.Run("UnknownFlavorIsSkippedWithPadding", func(t *testing.T) {
		b := xdr.NewBuffer(0, 0)
		b.PutUint32(6) // RPCSEC_GSS
		b.PutUint32(5)
		copy(b.Put(8), []byte{1, 2, 3, 4, 5})
		b.PutUint32(0xdeadbeef)

		cred, err := GetCredential(b)
		require.NoError(t, err)
		opaque, ok := cred.(*OpaqueAuth)
		require.True(t, ok)
		assert.Equal(t, uint32(6), opaque.Flavor())
		assert.Equal(t, []byte{1, 2, 3, 4, 5}, opaque.Body)

		next, err := b.GetUint32()
		require.NoError(t, err)
		assert.Equal(t, uint32(0xdeadbeef), next)
	})
}

func TestGetCredentialErrors(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		_, err := GetCredential(xdr.Wrap([]byte{0, 0, 0, 1, 0, 0, 0, 20, 0, 0}))
		assert.ErrorIs(t, err, xdr.ErrTruncated)
	})

	t.Run("AuthNoneWithBody", func(t *testing.T) {
		_, err := GetCredential(xdr.Wrap([]byte{0, 0, 0, 0, 0, 0, 0, 4, 1, 2, 3, 4}))
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("AuthSysTrailingBytes", func(t *testing.T) {
		a, err := NewAuthSys(0, 0, "h")
		require.NoError(t, err)

		body := xdr.NewBuffer(0, 0)
		a.putBody(body)
		body.PutUint32(0)

		b := xdr.NewBuffer(0, 0)
		b.PutUint32(AuthFlavorSys)
		b.PutOpaque(body.Bytes())

		_, err = GetCredential(b)
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("OversizedBody", func(t *testing.T) {
		_, err := GetCredential(xdr.Wrap([]byte{0, 0, 0, 1, 0, 0, 0x10, 0}))
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})
}
