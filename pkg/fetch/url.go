package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// ErrInvalidURL is returned by ParseURL for URLs that do not name a file on
// an NFS server.
var ErrInvalidURL = errors.New("fetch: invalid nfs URL")

// Scheme is the URL scheme handled by the fetcher.
const Scheme = "nfs"

// URL identifies a file on an NFS export.
//
// Format: nfs://host[:port]/path/to/export/file
//
// The last path element is the file, everything before it is the mount
// point. The optional port selects the port mapper, not the NFS server.
type URL struct {
	// Host is the server name or address.
	Host string

	// PortmapPort is the port mapper port from the URL, 0 if absent.
	PortmapPort uint16

	// MountPoint is the directory passed to MNT.
	MountPoint string

	// Filename is the name passed to LOOKUP in the mounted directory.
	Filename string
}

// ParseURL parses an nfs:// URL.
//
// Examples:
//
//	nfs://10.0.0.1/export/boot/vmlinuz      mount /export/boot, file vmlinuz
//	nfs://server:2049/vmlinuz               mount /, file vmlinuz (portmap :2049)
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("%w: scheme %q is not %q", ErrInvalidURL, u.Scheme, Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	result := &URL{Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalidURL, p)
		}
		result.PortmapPort = uint16(port)
	}

	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return nil, fmt.Errorf("%w: %q does not name a file", ErrInvalidURL, u.Path)
	}
	clean := path.Clean(u.Path)
	result.MountPoint, result.Filename = path.Split(clean)
	if result.Filename == "" || result.Filename == "." || result.Filename == ".." {
		return nil, fmt.Errorf("%w: %q does not name a file", ErrInvalidURL, u.Path)
	}
	if len(result.MountPoint) > 1 {
		result.MountPoint = strings.TrimSuffix(result.MountPoint, "/")
	}
	return result, nil
}

// String formats the URL back into nfs:// form.
func (u *URL) String() string {
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.PortmapPort != 0 {
		host += ":" + strconv.Itoa(int(u.PortmapPort))
	}
	return Scheme + "://" + host + path.Join(u.MountPoint, u.Filename)
}
