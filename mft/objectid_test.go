package mft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfirkit/ntfscore/mft"
)

func TestParseObjectIdShortForm(t *testing.T) {
	input := decodeHex(t, "0102030405060708090a0b0c0d0e0f10")

	oid, err := mft.ParseObjectId(input)
	require.Nilf(t, err, "error parsing $OBJECT_ID: %v", err)

	assert.Equal(t, mft.GUID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, oid.ObjectId)
	assert.Equal(t, mft.GUID{}, oid.BirthVolumeId)
}

func TestParseObjectIdFullForm(t *testing.T) {
	input := decodeHex(t,
		"0102030405060708090a0b0c0d0e0f10"+
			"1112131415161718191a1b1c1d1e1f20"+
			"2122232425262728292a2b2c2d2e2f30"+
			"3132333435363738393a3b3c3d3e3f40")

	oid, err := mft.ParseObjectId(input)
	require.Nilf(t, err, "error parsing $OBJECT_ID: %v", err)

	assert.Equal(t, mft.GUID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, oid.ObjectId)
	assert.Equal(t, mft.GUID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20}, oid.BirthVolumeId)
	assert.Equal(t, mft.GUID{0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f, 0x40}, oid.DomainId)
}

func TestParseObjectIdTooShort(t *testing.T) {
	input := decodeHex(t, "0102030405")

	_, err := mft.ParseObjectId(input)
	assert.NotNil(t, err, "expected an error for a too-short $OBJECT_ID")
}

func TestGUIDString(t *testing.T) {
	g := mft.GUID{0x03, 0x02, 0x01, 0x00, 0x05, 0x04, 0x07, 0x06, 0x08, 0x09, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15}
	assert.Equal(t, "00010203-0405-0607-0809-101112131415", g.String())
}
