package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"head_end", KindHeadEnd},
		{"OLT", KindHeadEnd},
		{"HeadEnd", KindHeadEnd},
		{"splitter", KindSplitter},
		{"customer-drop", KindCustomerDrop},
		{"Customer", KindCustomerDrop},
		{"route", KindFiberRoute},
		{"FiberRoute", KindFiberRoute},
		{" complaint ", KindComplaint},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseKind("router")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestKindHierarchy(t *testing.T) {
	parent, ok := KindSplitter.ParentKind()
	assert.True(t, ok)
	assert.Equal(t, KindHeadEnd, parent)

	parent, ok = KindComplaint.ParentKind()
	assert.True(t, ok)
	assert.Equal(t, KindCustomerDrop, parent)

	_, ok = KindHeadEnd.ParentKind()
	assert.False(t, ok)
	_, ok = KindFiberRoute.ParentKind()
	assert.False(t, ok, "fiber routes are standalone")

	for i, k := range Kinds() {
		assert.Equal(t, i, k.Rank())
		assert.NotEmpty(t, k.IDPrefix())
	}
	assert.Equal(t, -1, Kind("bogus").Rank())
}

func TestStatusRules(t *testing.T) {
	assert.True(t, StatusActive.AllowedFor(KindHeadEnd))
	assert.True(t, StatusMaintenance.AllowedFor(KindFiberRoute))
	assert.False(t, StatusOpen.AllowedFor(KindSplitter))
	assert.True(t, StatusResolved.AllowedFor(KindComplaint))
	assert.False(t, StatusInactive.AllowedFor(KindComplaint))

	assert.True(t, StatusMaintenance.Live())
	assert.False(t, StatusInactive.Live())
	assert.False(t, StatusResolved.Live())

	assert.Equal(t, StatusResolved, Retired(KindComplaint))
	assert.Equal(t, StatusInactive, Retired(KindSplitter))

	_, err := ParseStatus(KindHeadEnd, "open")
	assert.ErrorIs(t, err, ErrInvalidValue)
	s, err := ParseStatus(KindHeadEnd, " Maintenance ")
	require.NoError(t, err)
	assert.Equal(t, StatusMaintenance, s)
}

func TestParseSplitRatio(t *testing.T) {
	for _, in := range []string{"1:8", "1/8", "8", " 1 : 8 "} {
		r, err := ParseSplitRatio(in)
		require.NoError(t, err, in)
		assert.Equal(t, Ratio1x8, r)
		assert.Equal(t, 8, r.Ports())
	}

	for _, in := range []string{"", "1:7", "2:8", "abc", "1:0"} {
		_, err := ParseSplitRatio(in)
		assert.Error(t, err, in)
	}

	text, err := Ratio1x32.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1:32", string(text))

	var r SplitRatio
	require.NoError(t, r.UnmarshalText([]byte("1:16")))
	assert.Equal(t, Ratio1x16, r)
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, Coordinate{Lat: -6.2, Lng: 106.8}.Validate())
	assert.ErrorIs(t, Coordinate{Lat: 91}.Validate(), ErrInvalidValue)
	assert.ErrorIs(t, Coordinate{Lng: -181}.Validate(), ErrInvalidValue)
	assert.ErrorIs(t, Coordinate{Lat: math.NaN()}.Validate(), ErrInvalidValue)
	assert.ErrorIs(t, Coordinate{Lng: math.Inf(1)}.Validate(), ErrInvalidValue)

	assert.ErrorIs(t, ValidatePath([]Coordinate{{Lat: 1, Lng: 1}}), ErrMissingRequiredField)
	assert.ErrorIs(t, ValidatePath([]Coordinate{{Lat: 1, Lng: 1}, {Lat: 100, Lng: 1}}), ErrInvalidValue)
}

func TestDraftBuild(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	loc := &Coordinate{Lat: -6.2, Lng: 106.8}

	t.Run("head end", func(t *testing.T) {
		el, err := Draft{Name: "OLT Central", Kind: "olt", Location: loc, CapacityPorts: 16}.Build("OLT001", now)
		require.NoError(t, err)
		he, ok := el.(*HeadEnd)
		require.True(t, ok)
		assert.Equal(t, "OLT001", he.ID)
		assert.Equal(t, StatusActive, he.Status)
		assert.Equal(t, now, he.InstalledAt)
		assert.Equal(t, 16, he.CapacityPorts)
		assert.Zero(t, he.UsedPorts)
	})

	t.Run("splitter requires ratio and parent", func(t *testing.T) {
		_, err := Draft{Name: "S1", Kind: "splitter", Location: loc, SplitRatio: "1:8"}.Build("SPL001", now)
		assert.ErrorIs(t, err, ErrMissingRequiredField)

		_, err = Draft{Name: "S1", Kind: "splitter", Location: loc, ParentID: "OLT001"}.Build("SPL001", now)
		assert.ErrorIs(t, err, ErrMissingRequiredField)

		el, err := Draft{Name: "S1", Kind: "splitter", Location: loc, ParentID: "OLT001", SplitRatio: "1:16"}.Build("SPL001", now)
		require.NoError(t, err)
		sp := el.(*Splitter)
		assert.Equal(t, "OLT001", sp.ParentHeadEndID)
		capacity, ok := Capacity(sp)
		assert.True(t, ok)
		assert.Equal(t, 16, capacity)
	})

	t.Run("fiber route takes location from path", func(t *testing.T) {
		path := []Coordinate{{Lat: 1, Lng: 2}, {Lat: 1.1, Lng: 2.1}}
		el, err := Draft{Name: "Trunk A", Kind: "route", Path: path, CapacityStrands: 48, UsedStrands: 12, LengthKm: 3.4}.Build("FBR001", now)
		require.NoError(t, err)
		fr := el.(*FiberRoute)
		assert.Equal(t, path[0], fr.Location)
		assert.Equal(t, 12, fr.UsedStrands)

		_, err = Draft{Name: "Trunk B", Kind: "route", Path: path, CapacityStrands: 4, UsedStrands: 5}.Build("FBR002", now)
		assert.ErrorIs(t, err, ErrInvalidValue)

		_, err = Draft{Name: "Trunk C", Kind: "route", Path: path, CapacityStrands: 4, ParentID: "OLT001"}.Build("FBR003", now)
		assert.ErrorIs(t, err, ErrInvalidValue, "routes never take a parent")
	})

	t.Run("complaint defaults", func(t *testing.T) {
		el, err := Draft{Name: "No signal", Kind: "complaint", Location: loc, ParentID: "CUS001"}.Build("CMP001", now)
		require.NoError(t, err)
		c := el.(*Complaint)
		assert.Equal(t, StatusOpen, c.Status)
		assert.Equal(t, PriorityMedium, c.Priority)
		assert.Equal(t, "CUS001", c.CustomerID)

		_, err = Draft{Name: "x", Kind: "complaint", Location: loc, ParentID: "CUS001", Priority: "urgent"}.Build("CMP002", now)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("rejects empty name and bad coordinates", func(t *testing.T) {
		_, err := Draft{Name: "   ", Kind: "olt", Location: loc, CapacityPorts: 4}.Build("OLT002", now)
		assert.ErrorIs(t, err, ErrMissingRequiredField)

		_, err = Draft{Name: "x", Kind: "olt", CapacityPorts: 4}.Build("OLT002", now)
		assert.ErrorIs(t, err, ErrMissingRequiredField)

		_, err = Draft{Name: "x", Kind: "olt", Location: &Coordinate{Lat: 200}, CapacityPorts: 4}.Build("OLT002", now)
		assert.ErrorIs(t, err, ErrInvalidValue)

		_, err = Draft{Name: "x", Kind: "tower", Location: loc}.Build("X", now)
		assert.ErrorIs(t, err, ErrInvalidKind)
	})
}

func TestCloneIsDeep(t *testing.T) {
	paid := time.Now()
	drop := &CustomerDrop{Base: Base{ID: "CUS001"}, LastPaymentDate: &paid}
	c := drop.Clone().(*CustomerDrop)
	*c.LastPaymentDate = paid.Add(time.Hour)
	assert.Equal(t, paid, *drop.LastPaymentDate)

	route := &FiberRoute{Path: []Coordinate{{Lat: 1}, {Lat: 2}}}
	rc := route.Clone().(*FiberRoute)
	rc.Path[0].Lat = 9
	assert.Equal(t, 1.0, route.Path[0].Lat)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "parent_at_capacity", Code(fmt.Errorf("create: %w", ErrParentAtCapacity)))
	assert.Equal(t, "malformed_document", Code(fmt.Errorf("%w: %w", ErrMalformedDocument, ErrNotFound)))
	assert.Equal(t, "internal", Code(errors.New("disk full")))
}
