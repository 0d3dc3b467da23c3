package dependency

// Node is one entry in a ResolvedGraph: a dependency reference, where it
// was installed, and its parsed manifest.
type Node struct {
	Reference   Reference
	InstallPath string
	Package     *Package
}

// ResolvedGraph is the pre-order-DFS-ordered, deduplicated dependency tree:
// direct dependencies in declaration order, each followed by its own
// dependencies, recursively. The root package is not a node; callers put
// the local scope ahead of these nodes when handing scopes to Discovery.
type ResolvedGraph struct {
	Nodes []Node
}

// VersionConflictWarning reports that repo_url was declared more than once
// with different refs; the first-resolved reference wins.
type VersionConflictWarning struct {
	RepoURL  string
	Winner   string
	Loser    string
	ByParent string
}

// CycleDetectedWarning reports a back-edge pruned during traversal.
type CycleDetectedWarning struct {
	RepoURL  string
	ByParent string
}

// downloadFunc materializes a single dependency reference; swapped for a
// fake in tests so the resolver's graph logic is exercised without network
// access.
type downloadFunc func(Reference) (*Resolved, error)

// Resolver walks the transitive dependency graph seeded from a root
// package, downloading each newly-seen node and merging them into one
// pre-order ResolvedGraph.
type Resolver struct {
	download downloadFunc
}

// NewResolver creates a Resolver backed by a real Downloader.
func NewResolver(d *Downloader) *Resolver {
	return &Resolver{download: d.Download}
}

// NewResolverWithDownloadFunc creates a Resolver with a custom download
// function (for testing).
func NewResolverWithDownloadFunc(fn downloadFunc) *Resolver {
	return &Resolver{download: fn}
}

// Resolve walks root's dependencies depth-first and returns the resolved
// graph along with any non-fatal VersionConflict/CycleDetected warnings.
// Root itself is not downloaded — it is already present locally — but is
// not included as a Node either; callers prepend their own local scope.
func (r *Resolver) Resolve(root *Package) (*ResolvedGraph, []VersionConflictWarning, []CycleDetectedWarning, error) {
	state := &resolveState{
		visited:    make(map[string]Reference),
		inProgress: make(map[string]bool),
	}

	if err := r.walk(root.Dependencies, "<root>", state); err != nil {
		return nil, nil, nil, err
	}

	return &ResolvedGraph{Nodes: state.nodes}, state.conflicts, state.cycles, nil
}

type resolveState struct {
	visited    map[string]Reference // repo_url -> first-resolved Reference
	inProgress map[string]bool      // repo_url -> on the current DFS stack
	nodes      []Node
	conflicts  []VersionConflictWarning
	cycles     []CycleDetectedWarning
}

func (r *Resolver) walk(refs []Reference, parentName string, state *resolveState) error {
	for _, ref := range refs {
		key := ref.DisplayName()

		if state.inProgress[key] {
			state.cycles = append(state.cycles, CycleDetectedWarning{RepoURL: key, ByParent: parentName})
			continue
		}

		if first, seen := state.visited[key]; seen {
			if first.RefName != ref.RefName {
				state.conflicts = append(state.conflicts, VersionConflictWarning{
					RepoURL:  key,
					Winner:   first.RefName,
					Loser:    ref.RefName,
					ByParent: parentName,
				})
			}
			continue
		}

		state.visited[key] = ref
		state.inProgress[key] = true

		resolved, err := r.download(ref)
		if err != nil {
			delete(state.inProgress, key)
			return err
		}

		state.nodes = append(state.nodes, Node{
			Reference:   ResolvedDisplayRef(ref, resolved),
			InstallPath: resolved.InstallPath,
			Package:     resolved.Package,
		})

		if err := r.walk(resolved.Package.Dependencies, key, state); err != nil {
			delete(state.inProgress, key)
			return err
		}

		delete(state.inProgress, key)
	}
	return nil
}

// ResolvedDisplayRef normalizes ref.RefName to the resolved ref so the
// emitted Node reflects the default-branch name even when the declaration
// omitted one, per the boundary case: "Dependency declared with #ref ->
// resolved_reference.ref_name == ref".
func ResolvedDisplayRef(ref Reference, resolved *Resolved) Reference {
	if ref.RefName != "" {
		return ref
	}
	return Reference{RepoURL: ref.RepoURL, RefName: resolved.Reference.RefName}
}
