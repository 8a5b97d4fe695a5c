package session

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/marmos91/dray/pkg/objectfs"
	"github.com/marmos91/dray/pkg/store/object"
)

// resolve turns a client path into an absolute, cleaned path. Empty and
// relative paths are taken relative to the home directory.
func (s *Session) resolve(p string) string {
	if p == "" || p == "." {
		return s.home()
	}
	if !strings.HasPrefix(p, "/") {
		p = s.home() + "/" + p
	}
	return path.Clean(p)
}

func (s *Session) home() string {
	if s.identity.Home == "" {
		return "/"
	}
	return s.identity.Home
}

// implicitHome reports whether err is a missing-path failure for the home
// directory. Homes exist before their first key is written.
func (s *Session) implicitHome(abs string, err error) bool {
	return err != nil && object.IsNotFound(err) && abs == s.home()
}

// longname renders an `ls -l` style line for NAME responses.
func (s *Session) longname(fi objectfs.FileInfo, now time.Time) string {
	a := fi.Attributes()
	owner := s.identity.Username
	if owner == "" {
		owner = "nobody"
	}

	stamp := "Jan  1  1970"
	if !fi.ModTime.IsZero() {
		layout := "Jan _2 15:04"
		if fi.ModTime.Before(now.AddDate(0, -6, 0)) || fi.ModTime.After(now.Add(time.Hour)) {
			layout = "Jan _2  2006"
		}
		stamp = fi.ModTime.Local().Format(layout)
	}

	links := 1
	if fi.Dir {
		links = 2
	}
	return fmt.Sprintf("%s %4d %-8s %-8s %8d %s %s",
		a.FileMode().String(), links, owner, owner, fi.Size, stamp, fi.Name)
}
