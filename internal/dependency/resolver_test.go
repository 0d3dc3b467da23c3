package dependency

import "testing"

func fakeResolved(repoURL, refName, commit string, deps ...Reference) *Resolved {
	return &Resolved{
		InstallPath: "/apm_modules/" + repoURL,
		Package:     &Package{Name: repoURL, Dependencies: deps},
		Reference:   ResolvedReference{RefName: refName, ResolvedCommit: commit},
	}
}

func TestResolver_SimpleTree(t *testing.T) {
	downloads := map[string]*Resolved{
		"owner/a": fakeResolved("owner/a", "main", "sha-a"),
		"owner/b": fakeResolved("owner/b", "main", "sha-b"),
	}
	resolver := NewResolverWithDownloadFunc(func(ref Reference) (*Resolved, error) {
		return downloads[ref.RepoURL], nil
	})

	root := &Package{Dependencies: []Reference{{RepoURL: "owner/a"}, {RepoURL: "owner/b"}}}
	graph, conflicts, cycles, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 0 || len(cycles) != 0 {
		t.Fatalf("expected no warnings, got conflicts=%v cycles=%v", conflicts, cycles)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(graph.Nodes))
	}
	if graph.Nodes[0].Reference.RepoURL != "owner/a" || graph.Nodes[1].Reference.RepoURL != "owner/b" {
		t.Errorf("expected declaration-order pre-order emission, got %+v", graph.Nodes)
	}
}

func TestResolver_PreOrderWithTransitiveDeps(t *testing.T) {
	downloads := map[string]*Resolved{
		"owner/a": fakeResolved("owner/a", "main", "sha-a", Reference{RepoURL: "owner/c"}),
		"owner/b": fakeResolved("owner/b", "main", "sha-b"),
		"owner/c": fakeResolved("owner/c", "main", "sha-c"),
	}
	resolver := NewResolverWithDownloadFunc(func(ref Reference) (*Resolved, error) {
		return downloads[ref.RepoURL], nil
	})

	root := &Package{Dependencies: []Reference{{RepoURL: "owner/a"}, {RepoURL: "owner/b"}}}
	graph, _, _, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []string
	for _, n := range graph.Nodes {
		order = append(order, n.Reference.RepoURL)
	}
	want := []string{"owner/a", "owner/c", "owner/b"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected order %v, got %v", want, order)
			break
		}
	}
}

func TestResolver_CyclicDependencies(t *testing.T) {
	downloads := map[string]*Resolved{
		"owner/a": fakeResolved("owner/a", "main", "sha-a", Reference{RepoURL: "owner/b"}),
		"owner/b": fakeResolved("owner/b", "main", "sha-b", Reference{RepoURL: "owner/a"}),
	}
	resolver := NewResolverWithDownloadFunc(func(ref Reference) (*Resolved, error) {
		return downloads[ref.RepoURL], nil
	})

	root := &Package{Dependencies: []Reference{{RepoURL: "owner/a"}}}
	graph, _, cycles, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected exactly 1 CycleDetected warning, got %d: %+v", len(cycles), cycles)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("expected both A and B present exactly once, got %d nodes", len(graph.Nodes))
	}
}

func TestResolver_VersionConflict_FirstWins(t *testing.T) {
	downloads := map[string]*Resolved{
		"owner/shared": fakeResolved("owner/shared", "v1.0.0", "sha-v1"),
	}
	resolver := NewResolverWithDownloadFunc(func(ref Reference) (*Resolved, error) {
		return downloads[ref.RepoURL], nil
	})

	root := &Package{Dependencies: []Reference{
		{RepoURL: "owner/shared", RefName: "v1.0.0"},
		{RepoURL: "owner/shared", RefName: "v2.0.0"},
	}}
	graph, conflicts, _, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 VersionConflict warning, got %d: %+v", len(conflicts), conflicts)
	}
	if len(graph.Nodes) != 1 {
		t.Fatalf("expected the first-resolved ref to be used exactly once, got %d nodes", len(graph.Nodes))
	}
	if graph.Nodes[0].Reference.RefName != "v1.0.0" {
		t.Errorf("expected first-resolved ref v1.0.0 to win, got %s", graph.Nodes[0].Reference.RefName)
	}
}

func TestResolver_SameVersionTwiceIsNotAConflict(t *testing.T) {
	downloads := map[string]*Resolved{
		"owner/shared": fakeResolved("owner/shared", "v1.0.0", "sha-v1"),
	}
	resolver := NewResolverWithDownloadFunc(func(ref Reference) (*Resolved, error) {
		return downloads[ref.RepoURL], nil
	})

	root := &Package{Dependencies: []Reference{
		{RepoURL: "owner/shared", RefName: "v1.0.0"},
		{RepoURL: "owner/shared", RefName: "v1.0.0"},
	}}
	_, conflicts, _, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflict for identical refs, got %+v", conflicts)
	}
}
