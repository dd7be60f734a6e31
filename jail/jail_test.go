package jail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidation(t *testing.T) {
	_, err := Create(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path not given")

	_, err = Create(Config{
		Root:   "/tmp/test/root",
		Limits: []Limit{{Resource: "memoryuse", Action: "deny", Amount: "512m"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource limits require a name")
}

func TestStopAlreadyStopped(t *testing.T) {
	j := &Jail{jid: 7, stopped: true}
	err := j.Stop()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var jerr *Error
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "jail_remove", jerr.Op)
	assert.Equal(t, "jail already stopped", jerr.Msg)
}

func TestCloseBorrowedHandle(t *testing.T) {
	// A handle from FromJID/FromName does not own the jail.
	j := &Jail{jid: 7}
	assert.NoError(t, j.Close())
}

func TestCloseAfterStop(t *testing.T) {
	j := &Jail{jid: 7, owned: true, stopped: true}
	assert.NoError(t, j.Close())
}

func TestCloseAfterRelease(t *testing.T) {
	j := &Jail{jid: 7, owned: true}
	j.Release()
	assert.NoError(t, j.Close())
}

func TestHandleAccessors(t *testing.T) {
	j := &Jail{jid: 7, name: "web"}
	assert.Equal(t, ID(7), j.JID())
	assert.Equal(t, "web", j.Name())
}

func TestFindByNameEmpty(t *testing.T) {
	_, err := FindByName("")
	assert.ErrorIs(t, err, ErrNotFound)
}
