package memstore

import (
	"testing"

	"gift-platform/internal/models"
	"gift-platform/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		st := New()
		return storetest.Harness{
			Store:      st,
			AddCreator: func(_ *testing.T, c models.Creator) { st.AddCreator(c) },
		}
	})
}
