package share

import (
	"testing"

	"github.com/fleetlink/nanoshare/store"
)

func TestSingleAssetGroup(t *testing.T) {
	vehicle := store.Group{ID: "42", Kind: store.GroupKindVehicle}
	trailer := store.Group{ID: "7", Kind: store.GroupKindTrailer}
	custom := store.Group{ID: "b2772"}

	for _, test := range []struct {
		name   string
		groups []store.Group
		want   store.Group
		ok     bool
	}{
		{"no groups", nil, store.Group{}, false},
		{"single vehicle group", []store.Group{vehicle}, vehicle, true},
		{"custom group only", []store.Group{custom}, store.Group{}, false},
		{"vehicle plus custom", []store.Group{custom, vehicle}, vehicle, true},
		{"two category groups", []store.Group{vehicle, trailer}, store.Group{}, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			g, ok := singleAssetGroup(&store.Asset{Groups: test.groups})
			if want, have := test.ok, ok; want != have {
				t.Fatalf("wanted: %v; have: %v", want, have)
			}
			if g != test.want {
				t.Errorf("wanted: %+v; have: %+v", test.want, g)
			}
		})
	}
}
