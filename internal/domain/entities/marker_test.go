package entities

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestMarkerHandleConcurrentAccess(t *testing.T) {
	handle := NewMarkerHandle("point:camera:cam-1", MarkerLayerCluster,
		NewLocation(44.75, 14.76), RenderMeta{IconKind: "camera"})

	// Writers reposition and re-render while readers poll position,
	// attachment and the JSON form, the way the ticker, the sweep and the
	// debug dump overlap at runtime.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			handle.SetLocation(NewLocation(44.75+float64(i)*1e-6, 14.76))
			handle.SetRender(RenderMeta{IconKind: "camera"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = handle.Location()
			_ = handle.Render()
			_ = handle.Attached()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := json.Marshal(handle); err != nil {
				t.Errorf("Marshal failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if !handle.Attached() {
		t.Error("Handle should still be attached")
	}
	if handle.Location().Lng != 14.76 {
		t.Errorf("Unexpected longitude %v", handle.Location().Lng)
	}
}

func TestMarkerHandleMarshalJSON(t *testing.T) {
	handle := NewMarkerHandle("ferry", MarkerLayerFerry,
		NewLocation(44.7086, 14.8647), RenderMeta{IconKind: "ferry"})
	handle.IsFerry = true
	handle.DoNotRemove = true

	data, err := json.Marshal(handle)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, want := range []string{`"id":"ferry"`, `"layer":"ferry"`, `"isFerry":true`, `"doNotRemove":true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
}
