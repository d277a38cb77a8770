package utils

// Find 按ID批量查找
// 功能：ids为空时原样返回all；否则按ids的顺序查表，查不到的ID收集到missing中
// 参数：index-ID到数据的索引，all-全部数据，ids-要查找的ID
// 返回：找到的数据与不存在的ID
func Find[K comparable, T any](index map[K]T, all []T, ids []K) (found []T, missing []K) {
	if len(ids) == 0 {
		return all, nil
	}
	found = make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := index[id]; ok {
			found = append(found, d)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}
