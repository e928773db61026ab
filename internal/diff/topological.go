package diff

import (
	"regexp"
	"strings"

	"github.com/dbgate/dbdeploy/model"
)

// topologicalOrder returns the indexes 0..n-1 ordered so that every node comes after the nodes
// it depends on. deps(i) lists the indexes node i depends on; unknown or self references are
// ignored. Nodes that are part of (or depend on) a cycle are not reordered: they are appended in
// their original order once nothing else can be emitted.
func topologicalOrder(n int, deps func(i int) []int) []int {
	if n <= 1 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}

	// Build dependency graph: an edge dep -> i for every dependency of i
	inDegree := make([]int, n)
	adjList := make([][]int, n)
	for i := 0; i < n; i++ {
		seen := make(map[int]bool)
		for _, dep := range deps(i) {
			if dep < 0 || dep >= n || dep == i || seen[dep] {
				continue
			}
			seen[dep] = true
			adjList[dep] = append(adjList[dep], i)
			inDegree[i]++
		}
	}

	// Kahn's algorithm, seeded and expanded in insertion order
	processed := make([]bool, n)
	result := make([]int, 0, n)
	var queue []int
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed[current] = true
		result = append(result, current)
		for _, neighbor := range adjList[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	// Cycles are left as they are
	for i := 0; i < n; i++ {
		if !processed[i] {
			result = append(result, i)
		}
	}
	return result
}

// reversed returns the order backwards, for drops.
func reversed(order []int) []int {
	res := make([]int, len(order))
	for i, v := range order {
		res[len(order)-1-i] = v
	}
	return res
}

// sortTablesByForeignKeys orders tables so that referenced tables come first.
func sortTablesByForeignKeys(tables []model.TableInfo, key tableKeyFunc) []model.TableInfo {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		index[key(t.SchemaName, t.PureName)] = i
	}
	order := topologicalOrder(len(tables), func(i int) []int {
		var deps []int
		for _, fk := range tables[i].ForeignKeys {
			refSchema := fk.RefSchemaName
			if refSchema == "" {
				refSchema = tables[i].SchemaName
			}
			if j, ok := index[key(refSchema, fk.RefTableName)]; ok {
				deps = append(deps, j)
			}
		}
		return deps
	})
	return pick(tables, order)
}

// sortSQLObjectsByDependencies orders SQL objects so that an object comes after the objects its
// definition mentions.
func sortSQLObjectsByDependencies(objects []model.SQLObjectInfo) []model.SQLObjectInfo {
	patterns := make([]*regexp.Regexp, len(objects))
	for i, obj := range objects {
		patterns[i] = referencePattern(obj.PureName)
	}
	order := topologicalOrder(len(objects), func(i int) []int {
		var deps []int
		for j := range objects {
			if j != i && patterns[j].MatchString(objects[i].CreateSQL) {
				deps = append(deps, j)
			}
		}
		return deps
	})
	return pick(objects, order)
}

// referencePattern matches name as a whole identifier, optionally quoted.
func referencePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\w$])` + regexp.QuoteMeta(strings.ToLower(name)) + `($|[^\w$])`)
}

func pick[T any](items []T, order []int) []T {
	res := make([]T, len(order))
	for i, idx := range order {
		res[i] = items[idx]
	}
	return res
}
