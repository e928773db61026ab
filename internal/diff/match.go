package diff

// matchKey extracts the pairing key of an item on each side. An empty key never matches.
type matchKey[T any] struct {
	old func(T) string
	new func(T) string
}

func symmetric[T any](key func(T) string) matchKey[T] {
	return matchKey[T]{old: key, new: key}
}

// itemPair holds the indexes of two paired items.
type itemPair struct {
	old, new int
}

// pairItems pairs old and new items by trying each key in turn on the still unpaired items.
// A key value that occurs more than once on either side is ambiguous and skipped, so the
// remaining items fall through to the next key. Pairs come back in new order.
func pairItems[T any](oldItems, newItems []T, keys ...matchKey[T]) (pairs []itemPair, oldOnly, newOnly []int) {
	oldPaired := make([]bool, len(oldItems))
	newToOld := make([]int, len(newItems))
	for i := range newToOld {
		newToOld[i] = -1
	}

	for _, key := range keys {
		oldIndex := uniqueIndex(oldItems, oldPaired, key.old)
		newPaired := make([]bool, len(newItems))
		for i, o := range newToOld {
			newPaired[i] = o >= 0
		}
		newIndex := uniqueIndex(newItems, newPaired, key.new)

		for k, ni := range newIndex {
			if ni < 0 {
				continue
			}
			oi, ok := oldIndex[k]
			if !ok || oi < 0 {
				continue
			}
			newToOld[ni] = oi
			oldPaired[oi] = true
		}
	}

	for ni, oi := range newToOld {
		if oi >= 0 {
			pairs = append(pairs, itemPair{old: oi, new: ni})
		} else {
			newOnly = append(newOnly, ni)
		}
	}
	for oi, paired := range oldPaired {
		if !paired {
			oldOnly = append(oldOnly, oi)
		}
	}
	return pairs, oldOnly, newOnly
}

// uniqueIndex maps key values of unpaired items to their index, or -1 when ambiguous.
func uniqueIndex[T any](items []T, paired []bool, key func(T) string) map[string]int {
	index := make(map[string]int)
	for i, item := range items {
		if paired[i] {
			continue
		}
		k := key(item)
		if k == "" {
			continue
		}
		if _, seen := index[k]; seen {
			index[k] = -1
			continue
		}
		index[k] = i
	}
	return index
}
