package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	Register("test.echo", func(args []string) int {
		fmt.Fprint(os.Stdout, "A")
		fmt.Fprint(os.Stderr, "B")
		return 0
	})
	Register("test.exit", func(args []string) int {
		code, _ := strconv.Atoi(args[0])
		return code
	})
	Register("test.results", func(args []string) int {
		w := ResultPipe()
		if w == nil {
			return 9
		}
		defer w.Close()
		for _, a := range args {
			fmt.Fprintln(w, a)
		}
		return 0
	})
	Register("test.sleep", func(args []string) int {
		fmt.Print("partial")
		time.Sleep(time.Minute)
		return 0
	})
}

func TestMain(m *testing.M) {
	Dispatch()
	os.Exit(m.Run())
}

func spawn(t *testing.T, entry string, args []string, opts Options) *Process {
	t.Helper()
	if !Supported() {
		t.Skip("process isolation unsupported")
	}
	p, err := Spawn(context.Background(), entry, args, opts)
	require.NoError(t, err)
	return p
}

func TestSpawn_CapturesOutput(t *testing.T) {
	p := spawn(t, "test.echo", nil, Options{})

	code, err := p.Wait(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "A", p.Stdout())
	assert.Equal(t, "B", p.Stderr())
	assert.NotZero(t, p.Pid())
	assert.False(t, p.Signaled())
}

func TestSpawn_ExitCode(t *testing.T) {
	p := spawn(t, "test.exit", []string{"3"}, Options{})

	code, err := p.Wait(0)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "exit status 3", p.State())
}

func TestSpawn_UnknownEntry(t *testing.T) {
	p := spawn(t, "test.missing", nil, Options{})

	code, err := p.Wait(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, ExitUnknownEntry, code)
	assert.Contains(t, p.Stderr(), "test.missing")
}

func TestSpawn_ResultPipe(t *testing.T) {
	p := spawn(t, "test.results", []string{"one", "two"}, Options{ResultPipe: true})

	code, err := p.Wait(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "one\ntwo\n", string(p.Results()))
}

func TestWait_TimeoutLeavesChildRunning(t *testing.T) {
	p := spawn(t, "test.sleep", nil, Options{})

	_, err := p.Wait(200 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, p.Exited())

	require.NoError(t, p.Kill())
	_, err = p.Wait(30 * time.Second)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.True(t, p.Signaled())
	}
}

func TestTailBuffer(t *testing.T) {
	b := NewTailBuffer(4)
	b.Write([]byte("ab"))
	assert.False(t, b.Truncated())
	b.Write([]byte("cdef"))

	assert.Equal(t, "cdef", b.String())
	assert.True(t, b.Truncated())
}

func TestEntries(t *testing.T) {
	assert.Contains(t, Entries(), "test.echo")
	assert.False(t, IsChild())
}

func TestSpawn_Unsupported(t *testing.T) {
	restore := SetSupported(func() bool { return false })
	defer restore()

	assert.False(t, Supported())
	_, err := Spawn(context.Background(), "test.echo", nil, Options{})
	assert.ErrorIs(t, err, ErrForkUnsupported)

	restore()
	assert.Equal(t, platformSupported(), Supported())
}
