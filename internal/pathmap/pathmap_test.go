package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIdentity(t *testing.T) {
	for _, tr := range []*Translator{nil, {}, Identity()} {
		assert.False(t, tr.Enabled())
		assert.Equal(t, "/home/me/a.py", tr.ToRemote("/home/me/a.py"))
		assert.Equal(t, `C:\x\a.py`, tr.ToLocal(`C:\x\a.py`))
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		local      string
		remote     string
		localPath  string
		remotePath string
	}{
		{
			name:       "posix to posix",
			local:      "/home/me/project",
			remote:     "/srv/app",
			localPath:  "/home/me/project/pkg/a.py",
			remotePath: "/srv/app/pkg/a.py",
		},
		{
			name:       "posix to windows",
			local:      "/home/me/project",
			remote:     `C:\work\app`,
			localPath:  "/home/me/project/pkg/a.py",
			remotePath: `C:\work\app\pkg\a.py`,
		},
		{
			name:       "windows to posix",
			local:      `D:\src`,
			remote:     "/opt/src",
			localPath:  `D:\src\main.py`,
			remotePath: "/opt/src/main.py",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.local, tt.remote)
			assert.True(t, tr.Enabled())
			assert.Equal(t, tt.remotePath, tr.ToRemote(tt.localPath))
			assert.Equal(t, tt.localPath, tr.ToLocal(tt.remotePath))
		})
	}
}

func TestTranslateOutsideRoot(t *testing.T) {
	tr := New("/home/me/project", "/srv/app")
	assert.Equal(t, "/usr/lib/x.py", tr.ToRemote("/usr/lib/x.py"))
	assert.Equal(t, "", tr.ToRemote(""))
}

func TestTranslateReplacesRootAnywhere(t *testing.T) {
	tr := New("/home/me/project", "/srv/app")
	assert.Equal(t, "/mnt/srv/app/a.py", tr.ToRemote("/mnt/home/me/project/a.py"))
	assert.Equal(t, "/srv/app-old/a.py", tr.ToRemote("/home/me/project-old/a.py"))
}
