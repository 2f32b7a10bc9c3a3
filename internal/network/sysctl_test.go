// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/errors"
)

func TestSysctl_Path(t *testing.T) {
	s := NewSysctl(afero.NewMemMapFs(), "")
	assert.Equal(t, "/proc/sys/net/ipv4/tcp_syncookies", s.Path("net.ipv4.tcp_syncookies"))
	assert.Equal(t, "/custom/file", s.Path("/custom/file"))
}

func TestSysctl_ReadWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proc/sys/net/ipv4/tcp_syncookies", []byte("0\n"), 0o644))
	s := NewSysctl(fs, "/proc/sys")

	v, err := s.Read("net.ipv4.tcp_syncookies")
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	require.NoError(t, s.Write("net.ipv4.tcp_syncookies", "1"))
	v, err = s.Read("net.ipv4.tcp_syncookies")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSysctl_MissingKey(t *testing.T) {
	s := NewSysctl(afero.NewMemMapFs(), "/proc/sys")

	err := s.Write("net.ipv4.tcp_syncookies", "1")
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
	assert.Equal(t, "net.ipv4.tcp_syncookies", errors.GetAttributes(err)["key"])

	exists, _ := afero.Exists(s.Fs, "/proc/sys/net/ipv4/tcp_syncookies")
	assert.False(t, exists, "sysctl files must never be created")

	_, err = s.Read("net.ipv4.ip_forward")
	assert.True(t, IsNotExist(err))
}
