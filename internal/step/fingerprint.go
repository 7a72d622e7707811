package step

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"reflect"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Fingerprint derives a stable identifier for fn. It covers the function's
// symbol name plus version. Without a version the identity of the running
// build is mixed in, so a rebuilt binary never reuses entries written by
// different code; bump version explicitly to share entries across builds.
func Fingerprint(fn Func, version string) string {
	h := sha256.New()
	h.Write([]byte(FuncName(fn)))
	h.Write([]byte{0})
	h.Write([]byte(version))
	if version == "" {
		h.Write([]byte{0})
		h.Write([]byte(buildID()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FuncName returns the fully qualified symbol name of fn.
func FuncName(fn Func) string {
	if fn == nil {
		return ""
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}

var buildID = sync.OnceValue(readBuildID)

// readBuildID identifies the running binary: the VCS revision when the build
// came from a clean checkout, otherwise a hash of the executable itself.
func readBuildID() string {
	var revision, modified string
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				modified = s.Value
			}
		}
	}
	if revision != "" && modified != "true" {
		return "vcs:" + revision
	}

	if sum, err := hashExecutable(); err == nil {
		return "exe:" + sum
	}
	// Neither source is available: entries live no longer than this process.
	return "process:" + uuid.NewString()
}

func hashExecutable() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
