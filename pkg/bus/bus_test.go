package bus

import "testing"

func TestMasterExistsByDefault(t *testing.T) {
	tree := New()
	if tree.Master() == nil {
		t.Fatal("expected a permanent Master root")
	}
	if tree.Master().Path() != "" {
		t.Fatalf("expected Master's own path to be empty, got %q", tree.Master().Path())
	}
}

func TestGainCascadesMultiplicatively(t *testing.T) {
	tree := New()
	music := tree.ResolveOrCreate("Mix/Music")

	tree.Master().SetGain(0.5)
	music.Parent().SetGain(0.8)
	music.SetGain(0.25)

	got := music.Effective().Gain
	want := 0.5 * 0.8 * 0.25
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Effective().Gain = %v, want %v", got, want)
	}
}

func TestMuteForcesZeroGainRegardlessOfLocalGain(t *testing.T) {
	tree := New()
	sfx := tree.ResolveOrCreate("Mix/Sfx")
	sfx.SetGain(10)
	tree.ResolveOrCreate("Mix").SetMuted(true)

	if got := sfx.Effective().Gain; got != 0 {
		t.Fatalf("Effective().Gain = %v, want 0 under an ancestor mute", got)
	}
	if !sfx.Effective().Muted {
		t.Fatal("expected Muted to propagate down from the ancestor")
	}
}

func TestPriorityBiasSumsUpTheChain(t *testing.T) {
	tree := New()
	leaf := tree.ResolveOrCreate("A/B/C")
	tree.ResolveOrCreate("A").SetPriorityBias(10)
	tree.ResolveOrCreate("A/B").SetPriorityBias(5)
	leaf.SetPriorityBias(1)

	if got := leaf.Effective().PriorityBias; got != 16 {
		t.Fatalf("Effective().PriorityBias = %d, want 16", got)
	}
}

func TestRecomputePropagatesToEveryDescendant(t *testing.T) {
	tree := New()
	child := tree.ResolveOrCreate("A")
	grandchild := tree.ResolveOrCreate("A/B")

	before := grandchild.Version()
	tree.Master().SetGain(0.1)
	after := grandchild.Version()

	if after <= before {
		t.Fatal("expected a Master gain change to bump every descendant's version")
	}
	if child.Effective().Gain != 0.1 {
		t.Fatalf("child Effective().Gain = %v, want 0.1", child.Effective().Gain)
	}
	if grandchild.Effective().Gain != 0.1 {
		t.Fatalf("grandchild Effective().Gain = %v, want 0.1", grandchild.Effective().Gain)
	}
}

func TestResolveOrCreateIsIdempotentPerSegment(t *testing.T) {
	tree := New()
	a := tree.ResolveOrCreate("Mix/Music")
	b := tree.ResolveOrCreate("Mix/Music")
	if a != b {
		t.Fatal("expected ResolveOrCreate to return the same bus for the same path")
	}
}

func TestResolveDoesNotCreate(t *testing.T) {
	tree := New()
	if tree.Resolve("Mix/Music") != nil {
		t.Fatal("expected Resolve to return nil for a bus that was never created")
	}
	tree.ResolveOrCreate("Mix/Music")
	if tree.Resolve("Mix/Music") == nil {
		t.Fatal("expected Resolve to find a bus created via ResolveOrCreate")
	}
}

func TestDeleteRemovesOnlyTheNamedBus(t *testing.T) {
	tree := New()
	tree.ResolveOrCreate("Mix/Music")
	tree.ResolveOrCreate("Mix/Sfx")

	if !tree.Delete("Mix/Music") {
		t.Fatal("expected Delete to report success for an existing bus")
	}
	if tree.Resolve("Mix/Music") != nil {
		t.Fatal("expected the deleted bus to be gone")
	}
	if tree.Resolve("Mix/Sfx") == nil {
		t.Fatal("expected the sibling bus to survive")
	}
	if tree.Delete("Mix/Master") {
		t.Fatal("expected Delete to report failure for a nonexistent bus")
	}
}

func TestDeleteCannotRemoveMaster(t *testing.T) {
	tree := New()
	if tree.Delete("") || tree.Delete("Master") {
		t.Fatal("expected Delete to refuse to remove the root")
	}
}

func TestPitchIsFlooredNotZeroed(t *testing.T) {
	tree := New()
	tree.Master().SetPitch(0)
	if got := tree.Master().Effective().Pitch; got <= 0 {
		t.Fatalf("Effective().Pitch = %v, want a small positive floor, not zero", got)
	}
}
