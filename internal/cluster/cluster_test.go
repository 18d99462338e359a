package cluster

import "testing"

func buildChainGraph(n int) GraphView {
	g := GraphView{NodeFile: map[string]string{}}
	for i := 0; i < n; i++ {
		name := nodeName(i)
		g.NodeFile[name] = name + ".py"
		if i > 0 {
			g.Edges = append(g.Edges, Edge{Source: nodeName(i - 1), Destination: name})
		}
	}
	return g
}

func nodeName(i int) string {
	return nodeNameUnique(i)
}

func TestClusterIsDeterministic(t *testing.T) {
	g := buildChainGraph(30)
	opts := DefaultOptions()

	r1 := Cluster(g, opts)
	r2 := Cluster(g, opts)

	if len(r1.FileToCluster) != len(r2.FileToCluster) {
		t.Fatalf("expected same node count across runs")
	}
	for f, c1 := range r1.FileToCluster {
		if c2, ok := r2.FileToCluster[f]; !ok || c1 != c2 {
			t.Fatalf("non-deterministic cluster assignment for %s: %d vs %d", f, c1, c2)
		}
	}
}

func TestClusterNoEdgesTracksEveryFile(t *testing.T) {
	g := GraphView{NodeFile: map[string]string{"a": "a.py", "b": "b.py"}}
	r := Cluster(g, Options{TargetClusters: 20, Seed: 1})
	if len(r.FileToCluster) != 2 {
		t.Fatalf("expected 2 files tracked, got %d", len(r.FileToCluster))
	}
}

func TestClusterEmptyGraph(t *testing.T) {
	r := Cluster(GraphView{NodeFile: map[string]string{}}, DefaultOptions())
	if len(r.FileToCluster) != 0 || len(r.ClusterToFiles) != 0 {
		t.Fatalf("expected empty result for empty graph, got %+v", r)
	}
}

func TestMergeUndersizedReducesClusterCountForSmallGraph(t *testing.T) {
	// Many tiny disconnected components with a low target cluster count
	// should get merged rather than left as dozens of singletons.
	g := GraphView{NodeFile: map[string]string{}}
	for i := 0; i < 40; i++ {
		name := nodeNameUnique(i)
		g.NodeFile[name] = name + ".py"
	}
	r := Cluster(g, Options{TargetClusters: 5, Seed: 1})
	if len(r.ClusterToFiles) >= 40 {
		t.Fatalf("expected merging to reduce cluster count well below node count, got %d clusters for 40 nodes", len(r.ClusterToFiles))
	}
}

func nodeNameUnique(i int) string {
	return string(rune('A'+i%26)) + string(rune('0'+i/26))
}

func TestSplitOversizedBreaksUpLargeComponent(t *testing.T) {
	g := buildChainGraph(200)
	r := Cluster(g, Options{TargetClusters: 20, Seed: 1})

	for id, files := range r.ClusterToFiles {
		if len(files) > 60 {
			t.Fatalf("expected splitting to keep clusters reasonably sized, cluster %d has %d files", id, len(files))
		}
	}
}

func TestClusterToFilesAndFileToClusterAreConsistent(t *testing.T) {
	g := buildChainGraph(25)
	r := Cluster(g, DefaultOptions())
	for file, id := range r.FileToCluster {
		found := false
		for _, f := range r.ClusterToFiles[id] {
			if f == file {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("file %s mapped to cluster %d but not present in reverse index", file, id)
		}
	}
}

func TestDenseClusterIDs(t *testing.T) {
	g := buildChainGraph(30)
	r := Cluster(g, DefaultOptions())
	for id := range r.ClusterToFiles {
		if id < 0 || id >= len(r.ClusterToFiles) {
			t.Fatalf("expected dense cluster ids in [0,%d), got %d", len(r.ClusterToFiles), id)
		}
	}
}
