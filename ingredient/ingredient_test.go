package ingredient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngredient struct {
	id   string
	kind Kind
}

func (f fakeIngredient) Descriptor() Descriptor {
	return Descriptor{ID: f.id, Kind: f.kind, Version: "1"}
}

func (f fakeIngredient) Run(ctx context.Context, in Input) (Result, error) {
	return Result{Scalar: "ok"}, nil
}

func TestKitchenRegisterAndLookup(t *testing.T) {
	k := NewKitchen()

	require.NoError(t, k.Register(fakeIngredient{id: "LLMMap", kind: MapKind}))

	ing, err := k.Lookup("llmmap")
	require.NoError(t, err)
	assert.Equal(t, MapKind, ing.Descriptor().Kind)
}

func TestKitchenRegisterRejectsDuplicateCaseInsensitive(t *testing.T) {
	k := NewKitchen()

	require.NoError(t, k.Register(fakeIngredient{id: "LLMMap", kind: MapKind}))

	err := k.Register(fakeIngredient{id: "llmmap", kind: MapKind})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIngredient))
}

func TestKitchenLookupUnknownFails(t *testing.T) {
	k := NewKitchen()

	_, err := k.Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownIngredient))
}

func TestDispatchOrderIsMapQAJoin(t *testing.T) {
	assert.Equal(t, []Kind{MapKind, QAKind, JoinKind}, DispatchOrder)
}

func TestStringKindIsNeverInDispatchOrder(t *testing.T) {
	for _, k := range DispatchOrder {
		assert.NotEqual(t, StringKind, k)
	}
}

func TestFingerprintIsStableForSameInput(t *testing.T) {
	desc := Descriptor{ID: "LLMMap", Kind: MapKind}
	args := []Arg{{Raw: "is fruit?"}}
	kwargs := map[string]Arg{"on": {Raw: "w::item"}}

	a := Fingerprint(desc, args, kwargs)
	b := Fingerprint(desc, args, kwargs)
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersForDifferentArgs(t *testing.T) {
	desc := Descriptor{ID: "LLMMap", Kind: MapKind}

	a := Fingerprint(desc, []Arg{{Raw: "is fruit?"}}, nil)
	b := Fingerprint(desc, []Arg{{Raw: "is vegetable?"}}, nil)
	assert.NotEqual(t, a, b)
}

func TestFingerprintDiffersForDifferentDescriptor(t *testing.T) {
	args := []Arg{{Raw: "is fruit?"}}

	a := Fingerprint(Descriptor{ID: "LLMMap"}, args, nil)
	b := Fingerprint(Descriptor{ID: "LLMQA"}, args, nil)
	assert.NotEqual(t, a, b)
}

func TestFingerprintIgnoresKwargInsertionOrder(t *testing.T) {
	desc := Descriptor{ID: "LLMJoin"}

	a := Fingerprint(desc, nil, map[string]Arg{"left_on": {Raw: "L::x"}, "right_on": {Raw: "R::y"}})
	b := Fingerprint(desc, nil, map[string]Arg{"right_on": {Raw: "R::y"}, "left_on": {Raw: "L::x"}})
	assert.Equal(t, a, b)
}

func TestKitchenNamesSortedByDescriptorID(t *testing.T) {
	k := NewKitchen()
	require.NoError(t, k.Register(fakeIngredient{id: "LLMQA", kind: QAKind}))
	require.NoError(t, k.Register(fakeIngredient{id: "LLMJoin", kind: JoinKind}))

	assert.Equal(t, []string{"LLMJoin", "LLMQA"}, k.Names())
}
