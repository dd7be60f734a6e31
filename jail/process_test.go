package jail

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A zero jid spawns on the host side, so these tests exercise the stdio and
// wait plumbing without needing a running jail or root.
func hostSide() *Jail {
	return &Jail{}
}

func TestStartEmptyArgv(t *testing.T) {
	_, err := hostSide().Command().Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty argv")
}

func TestPipesRoundTrip(t *testing.T) {
	cmd := hostSide().Command("/bin/cat")
	cmd.Stdio = StdioPipes
	p, err := cmd.Start()
	require.NoError(t, err)

	_, err = io.WriteString(p.Stdin(), "hello\n")
	require.NoError(t, err)
	require.NoError(t, p.CloseStdin())

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// Output buffered at exit stays readable after the wait.
	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestStderrSeparate(t *testing.T) {
	cmd := hostSide().Command("/bin/sh", "-c", "echo out; echo err 1>&2")
	cmd.Stdio = StdioPipes
	p, err := cmd.Start()
	require.NoError(t, err)

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(out))
	errOut, err := io.ReadAll(p.Stderr())
	require.NoError(t, err)
	assert.Equal(t, "err\n", string(errOut))
}

func TestExitCode(t *testing.T) {
	cmd := hostSide().Command("/bin/sh", "-c", "exit 3")
	code, err := cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestSignalExitCode(t *testing.T) {
	cmd := hostSide().Command("/bin/sleep", "30")
	cmd.Stdio = StdioPipes
	p, err := cmd.Start()
	require.NoError(t, err)

	require.NoError(t, p.Kill())
	code, err := p.Wait()
	require.NoError(t, err)
	// 128 + SIGKILL
	assert.Equal(t, 137, code)
}

func TestDoubleWait(t *testing.T) {
	cmd := hostSide().Command("/usr/bin/true")
	cmd.Stdio = StdioPipes
	p, err := cmd.Start()
	require.NoError(t, err)

	_, err = p.Wait()
	require.NoError(t, err)
	_, err = p.Wait()
	assert.ErrorIs(t, err, ErrProcessAlreadyWaited)
}

func TestCloseStdinWithoutPipe(t *testing.T) {
	cmd := hostSide().Command("/usr/bin/true")
	p, err := cmd.Start()
	require.NoError(t, err)
	defer p.Wait()

	assert.Error(t, p.CloseStdin())
	assert.Nil(t, p.Stdout())
	assert.Nil(t, p.Stderr())
}

func TestExecFailure(t *testing.T) {
	cmd := hostSide().Command("/nonexistent/binary")
	_, err := cmd.Start()
	require.Error(t, err)
	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageExec, serr.Stage)
}
