package fxid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChangeNumber_CoercesMissingOrOldMtimeToEpoch(t *testing.T) {
	f := NewFMID(1, 1)

	withZero := ChangeNumber(f, time.Time{})
	withOld := ChangeNumber(f, time.Unix(0, 0))
	withEpoch := ChangeNumber(f, time.Unix(int64(Epoch), 0))

	assert.Equal(t, withEpoch, withZero)
	assert.Equal(t, withEpoch, withOld)
}

func TestChangeNumber_IncreasesWithWallTime(t *testing.T) {
	f := NewFMID(1, 1)

	base := time.Unix(int64(Epoch)+100, 0)
	later := time.Unix(int64(Epoch)+200, 0)

	cnBase := ChangeNumber(f, base)
	cnLater := ChangeNumber(f, later)

	assert.Greater(t, cnLater, cnBase)
}

func TestChangeNumber_CarriesHighBitsOfFMID(t *testing.T) {
	lo := NewFMID(1, 1)
	hi := NewFMID(1, 0xffffffffffff)

	when := time.Unix(int64(Epoch)+1, 0)

	assert.NotEqual(t, ChangeNumber(lo, when), ChangeNumber(hi, when))
}

func TestGlobcntIsMonotoneAndDeterministic(t *testing.T) {
	assert.Less(t, globcnt(1), globcnt(2))
	assert.Equal(t, globcnt(12345), globcnt(12345))
}
