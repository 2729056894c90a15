package lagvae

import "testing"

func TestControllerPatience(t *testing.T) {
	c := NewAggressiveController(2, 100)
	if !c.Aggressive() {
		t.Fatal("controller should start aggressive")
	}

	// Epoch 0: improving MI keeps the patience intact.
	c.ObserveMI(1)
	c.EpochStart(0)
	c.ObserveMI(2)
	c.EpochStart(1)
	if !c.Aggressive() || c.StableMI() {
		t.Fatal("improving MI should not consume patience")
	}

	// Two consecutive drops exhaust a patience of 2.
	c.ObserveMI(1.5)
	c.EpochStart(2)
	if !c.Aggressive() {
		t.Fatal("one drop should not end aggressive mode")
	}
	if !c.StableMI() {
		t.Error("a drop should mark the MI as stable")
	}
	c.ObserveMI(1)
	c.EpochStart(3)
	if c.Aggressive() {
		t.Fatal("second drop should end aggressive mode")
	}
}

func TestControllerOneWay(t *testing.T) {
	c := NewAggressiveController(1, 100)
	c.ObserveMI(5)
	c.EpochStart(0)
	c.ObserveMI(1)
	c.EpochStart(1)
	if c.Aggressive() {
		t.Fatal("patience 1 should switch after one drop")
	}
	// A later improvement must not re-enable aggressive
	// mode.
	c.ObserveMI(50)
	c.EpochStart(2)
	if c.Aggressive() {
		t.Error("controller re-entered aggressive mode")
	}
}

func TestControllerEpochCeiling(t *testing.T) {
	c := NewAggressiveController(10, 3)
	for epoch := 0; epoch < 3; epoch++ {
		c.ObserveMI(float64(epoch))
		c.EpochStart(epoch)
		if !c.Aggressive() {
			t.Fatalf("epoch %d: ended aggressive mode early", epoch)
		}
	}
	c.ObserveMI(100)
	c.EpochStart(3)
	if c.Aggressive() {
		t.Error("epoch ceiling did not end aggressive mode")
	}
}

func TestControllerBatchAveraging(t *testing.T) {
	c := NewAggressiveController(5, 100)
	// Mean 2 across three batches.
	c.ObserveMI(1)
	c.ObserveMI(2)
	c.ObserveMI(3)
	c.EpochStart(0)
	// Mean 1: a drop from 2.
	c.ObserveMI(1)
	c.ObserveMI(1)
	c.EpochStart(1)
	if !c.StableMI() {
		t.Error("averaged MI drop was not detected")
	}
	if c.Patience != 4 {
		t.Errorf("expected patience 4 but got %d", c.Patience)
	}
}
