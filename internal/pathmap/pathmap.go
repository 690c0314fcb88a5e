// Package pathmap translates filenames between the IDE's filesystem namespace
// and the namespace a (possibly remote) backend sees.
package pathmap

import "strings"

// Translator maps filenames at every protocol boundary. The zero value and a
// disabled translator are the identity.
type Translator struct {
	enabled    bool
	localRoot  string
	remoteRoot string
	localSep   byte
	remoteSep  byte
}

// New returns a translator that substitutes remoteRoot for localRoot. The
// separator style of each side is inferred from its root.
func New(localRoot, remoteRoot string) *Translator {
	return &Translator{
		enabled:    true,
		localRoot:  localRoot,
		remoteRoot: remoteRoot,
		localSep:   separatorOf(localRoot),
		remoteSep:  separatorOf(remoteRoot),
	}
}

// Identity returns a translator that leaves every path untouched.
func Identity() *Translator {
	return &Translator{}
}

func (t *Translator) Enabled() bool {
	return t != nil && t.enabled
}

// ToRemote maps an IDE-local path into the backend namespace.
func (t *Translator) ToRemote(path string) string {
	if !t.Enabled() || path == "" {
		return path
	}
	return translate(path, t.localRoot, t.remoteRoot, t.localSep, t.remoteSep)
}

// ToLocal maps a backend path into the IDE-local namespace.
func (t *Translator) ToLocal(path string) string {
	if !t.Enabled() || path == "" {
		return path
	}
	return translate(path, t.remoteRoot, t.localRoot, t.remoteSep, t.localSep)
}

func translate(path, fromRoot, toRoot string, fromSep, toSep byte) string {
	if fromRoot != "" {
		path = strings.ReplaceAll(path, fromRoot, toRoot)
	}
	if fromSep != toSep {
		path = strings.ReplaceAll(path, string(fromSep), string(toSep))
	}
	return path
}

// separatorOf guesses the separator style of a root: a backslash anywhere,
// or a drive-letter prefix, means Windows style.
func separatorOf(root string) byte {
	if strings.Contains(root, `\`) {
		return '\\'
	}
	if len(root) >= 2 && root[1] == ':' {
		return '\\'
	}
	return '/'
}
