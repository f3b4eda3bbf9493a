package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sealedkv/internal/policy"
	"github.com/cuemby/sealedkv/kverrors"
)

func newPlaintextStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// permissivePolicy lets short fixture passwords like "password" through the
// tests' scenarios, matching spec.md S5/S6's "policy override permitting it".
func permissivePolicy() *policy.Policy {
	return &policy.Policy{MinLength: 1, MinSpecial: 0, MinUppercase: 0, MinDigits: 0}
}

// S1 Basic
func TestScenarioS1Basic(t *testing.T) {
	s := newPlaintextStorage(t)

	require.NoError(t, s.Write("test", "test_value"))

	v, err := s.Read("test")
	require.NoError(t, err)
	assert.Equal(t, "test_value", v)

	require.NoError(t, s.Delete("test"))

	_, err = s.Read("test")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))
}

// S2 Prefix
func TestScenarioS2Prefix(t *testing.T) {
	s := newPlaintextStorage(t)

	require.NoError(t, s.Write("test1", "test_value1"))
	require.NoError(t, s.Write("test2", "test_value2"))
	require.NoError(t, s.Write("test3", "test_value3"))
	require.NoError(t, s.Write("tes4", "should_not_match"))

	pairs, err := s.PartialCompare("test")
	require.NoError(t, err)
	assert.Equal(t, []KV{
		{Key: "test1", Value: "test_value1"},
		{Key: "test2", Value: "test_value2"},
		{Key: "test3", Value: "test_value3"},
	}, pairs)
}

// S3 Tx rollback
func TestScenarioS3TxRollback(t *testing.T) {
	s := newPlaintextStorage(t)

	h, err := s.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, s.TransactionalWrite(h, "test1", "v1"))
	require.NoError(t, s.TransactionalWrite(h, "test2", "v2"))
	require.NoError(t, s.RollbackTransaction(h))

	_, err = s.Read("test1")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))
	_, err = s.Read("test2")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))
}

// S4 Tx isolation
func TestScenarioS4TxIsolation(t *testing.T) {
	s := newPlaintextStorage(t)

	h1, err := s.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, s.TransactionalWrite(h1, "a", "1"))
	require.NoError(t, s.CommitTransaction(h1))

	h2, err := s.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, s.TransactionalWrite(h2, "b", "2"))

	a, err := s.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "1", a)

	_, err = s.Read("b")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))

	require.NoError(t, s.RollbackTransaction(h2))
}

// S5 Encrypted open
func TestScenarioS5EncryptedOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	password := "password"

	s, err := New(Config{Path: dir, Password: &password, Policy: permissivePolicy()})
	require.NoError(t, err)
	require.NoError(t, s.Write("k", "v"))
	require.NoError(t, s.Close())

	reopened, err := Open(Config{Path: dir, Password: &password, Policy: permissivePolicy()})
	require.NoError(t, err)
	v, err := reopened.Read("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, reopened.Close())

	wrong := "wrong"
	_, err = Open(Config{Path: dir, Password: &wrong, Policy: permissivePolicy()})
	assert.True(t, kverrors.Is(err, kverrors.WrongPassword))
}

// S6 Backup/restore 1500 entries
func TestScenarioS6BackupRestore(t *testing.T) {
	base := t.TempDir()
	s, err := New(Config{Path: filepath.Join(base, "db"), Policy: permissivePolicy()})
	require.NoError(t, err)

	const n = 1500
	for i := 0; i < n; i++ {
		require.NoError(t, s.Write(keyN(i), valueN(i)))
	}

	backupPath := filepath.Join(base, "backup.bin")
	sidecarPath := filepath.Join(base, "backup.dek")
	password := "password"
	require.NoError(t, s.Backup(backupPath, sidecarPath, password))

	require.NoError(t, DeleteDBFiles(s))

	fresh, err := New(Config{Path: filepath.Join(base, "db2")})
	require.NoError(t, err)
	defer fresh.Close()

	require.NoError(t, fresh.RestoreBackup(backupPath, sidecarPath, password))

	for i := 0; i < n; i++ {
		v, err := fresh.Read(keyN(i))
		require.NoError(t, err)
		assert.Equal(t, valueN(i), v)
	}
}

func keyN(i int) string   { return "test" + itoa(i) }
func valueN(i int) string { return "test_value" + itoa(i) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestEncryptedRoundTripHidesPlaintext(t *testing.T) {
	password := "password"
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "db"), Password: &password, Policy: permissivePolicy()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write("secret", "super-secret-value"))

	tx, err := s.eng.Begin(false)
	require.NoError(t, err)
	raw, err := tx.Get([]byte("secret"))
	require.NoError(t, err)
	_ = tx.Rollback()

	assert.NotEqual(t, []byte("super-secret-value"), raw)
}

func TestDEKEntryInvisible(t *testing.T) {
	password := "password"
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "db"), Password: &password, Policy: permissivePolicy()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write("k1", "v1"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.NotContains(t, keys, "DEK")

	pairs, err := s.PartialCompare("")
	require.NoError(t, err)
	for _, kv := range pairs {
		assert.NotEqual(t, "DEK", kv.Key)
	}
}

func TestHandleLifecycleAfterCommit(t *testing.T) {
	s := newPlaintextStorage(t)

	h, err := s.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, s.CommitTransaction(h))

	err = s.TransactionalWrite(h, "k", "v")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))
}

func TestPasswordRotationPreservesData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	p1, p2 := "password-one", "password-two"

	s, err := New(Config{Path: dir, Password: &p1, Policy: permissivePolicy()})
	require.NoError(t, err)
	require.NoError(t, s.Write("k", "v"))
	require.NoError(t, s.ChangePassword(p1, p2))
	require.NoError(t, s.Close())

	reopened, err := Open(Config{Path: dir, Password: &p2, Policy: permissivePolicy()})
	require.NoError(t, err)
	v, err := reopened.Read("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, reopened.Close())

	_, err = Open(Config{Path: dir, Password: &p1, Policy: permissivePolicy()})
	assert.True(t, kverrors.Is(err, kverrors.WrongPassword))
}

func TestBackupTamperDetection(t *testing.T) {
	base := t.TempDir()
	s, err := New(Config{Path: filepath.Join(base, "db"), Policy: permissivePolicy()})
	require.NoError(t, err)
	require.NoError(t, s.Write("k", "v"))

	backupPath := filepath.Join(base, "backup.bin")
	sidecarPath := filepath.Join(base, "backup.dek")
	password := "password"
	require.NoError(t, s.Backup(backupPath, sidecarPath, password))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(backupPath, data, 0o600))

	fresh, err := New(Config{Path: filepath.Join(base, "db2")})
	require.NoError(t, err)
	defer fresh.Close()

	err = fresh.RestoreBackup(backupPath, sidecarPath, password)
	assert.True(t, kverrors.Is(err, kverrors.FailedToDecryptData))
}

func TestPolicyEnforcement(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	strict := policy.Default()
	weak := "short"

	_, err := New(Config{Path: dir, Password: &weak, Policy: &strict})
	assert.True(t, kverrors.Is(err, kverrors.WeakPassword))

	strong := "Str0ng!!!PassPhrase###123"
	s, err := New(Config{Path: dir, Password: &strong, Policy: &strict})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
