package engine

// wouldCreateCycle reports whether inserting taskID -> dependsOnTaskID would
// close a cycle, i.e. taskID is already reachable from dependsOnTaskID by
// following depends-on edges. Plain BFS over the project adjacency; traversal
// order does not matter.
func wouldCreateCycle(edges map[string][]string, taskID, dependsOnTaskID string) bool {
	if taskID == dependsOnTaskID {
		return true
	}
	seen := map[string]bool{}
	queue := []string{dependsOnTaskID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == taskID {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, edges[cur]...)
	}
	return false
}
