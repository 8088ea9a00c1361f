package volume_test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/bootsect"
	"github.com/dfirkit/ntfscore/volume"
)

const ntfsBootSectorHex = "eb52904e5446532020202000020800000000000000f800003f00ff0000280300000000008000800010825b740000000000000c00000000000200000000000000f600000001000000a370d74c31115c3e00000000fa33c08ed0bc007cfb68c0071f1e686600cb88160e0066813e03004e5446537515b441bbaa55cd13720c81fb55aa7506f7c101007503e9dd001e83ec18681a00b4488a160e008bf4161fcd139f83c4189e581f72e13b060b0075dba30f00c12e0f00041e5a33dbb900202bc866ff06110003160f008ec2ff061600e84b002bc877efb800bbcd1a6623c0752d6681fb54435041752481f90201721e166807bb1668700e1668090066536653665516161668b80166610e07cd1a33c0bf2810b9d80ffcf3aae95f01909066601e0666a111006603061c001e66680000000066500653680100681000b4428a160e00161f8bf4cd1366595b5a665966591f0f82160066ff06110003160f008ec2ff0e160075bc071f6661c3a0f801e80900a0fb01e80300f4ebfdb4018bf0ac3c007409b40ebb0700cd10ebf2c30d0a41206469736b2072656164206572726f72206f63637572726564000d0a424f4f544d4752206973206d697373696e67000d0a424f4f544d475220697320636f6d70726573736564000d0a5072657373204374726c2b416c742b44656c20746f20726573746172740d0a008ca9bed6000055aa"

func writeTestVolumeImage(t *testing.T) string {
	t.Helper()
	raw, err := hex.DecodeString(ntfsBootSectorHex)
	require.Nilf(t, err, "unable to decode boot sector hex: %v", err)

	dir := t.TempDir()
	path := filepath.Join(dir, "volume.img")
	require.Nilf(t, os.WriteFile(path, raw, 0o600), "unable to write test volume image")
	return path
}

func TestOpenOnlineParsesGeometry(t *testing.T) {
	path := writeTestVolumeImage(t)

	r, err := volume.OpenOnline(path, volume.OpenOptions{})
	require.Nilf(t, err, "error opening online volume: %v", err)
	defer r.Close()

	assert.True(t, r.IsReady())
	assert.Equal(t, path, r.Location())
	assert.Equal(t, 4096, r.Geometry().BytesPerCluster)
	assert.Equal(t, bootsect.KindNTFS, r.Geometry().Kind)
	assert.NotNil(t, r.BootSectorBytes())
}

func TestOpenOnlineReadAt(t *testing.T) {
	path := writeTestVolumeImage(t)

	r, err := volume.OpenOnline(path, volume.OpenOptions{})
	require.Nilf(t, err, "error opening online volume: %v", err)
	defer r.Close()

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.Nilf(t, err, "error reading at offset: %v", err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("NTFS"), buf)
}

func TestOpenOnlineRejectsNonNtfs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notntfs.img")
	require.Nilf(t, os.WriteFile(path, make([]byte, 512), 0o600), "unable to write test image")

	_, err := volume.OpenOnline(path, volume.OpenOptions{})
	assert.NotNil(t, err, "expected an error for a non-NTFS boot sector")
}

func TestOpenOfflineUsesSuppliedGeometry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mft.bin")
	require.Nilf(t, os.WriteFile(path, []byte("FILE0"), 0o600), "unable to write test MFT file")

	geom := bootsect.Geometry{BytesPerSector: 512, BytesPerCluster: 4096, BytesPerFRS: 1024, Kind: bootsect.KindNTFS}
	r, err := volume.OpenOffline(path, geom)
	require.Nilf(t, err, "error opening offline volume: %v", err)
	defer r.Close()

	assert.True(t, r.IsReady())
	assert.Nil(t, r.BootSectorBytes())
	assert.Equal(t, 4096, r.Geometry().BytesPerCluster)
}

func TestCloneIsIndependent(t *testing.T) {
	path := writeTestVolumeImage(t)

	r, err := volume.OpenOnline(path, volume.OpenOptions{})
	require.Nilf(t, err, "error opening online volume: %v", err)
	defer r.Close()

	clone, err := r.Clone()
	require.Nilf(t, err, "error cloning reader: %v", err)
	defer clone.Close()

	buf := make([]byte, 4)
	_, err = clone.ReadAt(buf, 3)
	require.Nilf(t, err, "error reading from clone: %v", err)
	assert.Equal(t, []byte("NTFS"), buf)
}
