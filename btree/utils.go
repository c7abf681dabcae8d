package btree

import "bptlab/record"

// binarySearch returns the index of key in keys, or -1 when absent.
func binarySearch(keys []record.CompositeKey, key record.CompositeKey) int {
	lo, hi := 0, len(keys)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch cmp := keys[mid].Compare(key); {
		case cmp == 0:
			return mid
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// insertPosition returns the slot where key keeps keys sorted.
func insertPosition(keys []record.CompositeKey, key record.CompositeKey) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lastLessOrEqual returns the index of the last key <= key, or -1 when every
// key is greater. Internal-node descent follows child lastLessOrEqual+1.
func lastLessOrEqual(keys []record.CompositeKey, key record.CompositeKey) int {
	lo, hi, ans := 0, len(keys)-1, -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if keys[mid].Compare(key) <= 0 {
			ans = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return ans
}

// firstGreaterOrEqual returns the index of the first key >= key, or len(keys)
// when every key is smaller. Range scans start here.
func firstGreaterOrEqual(keys []record.CompositeKey, key record.CompositeKey) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
