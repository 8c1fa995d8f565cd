package navigation

import "github.com/hitoshi/fluxreader/internal/model"

// adjacentInContext はローカル閲覧コンテキストの記事列から隣接記事を返す。
// 現在の記事が列に含まれない場合や、範囲外の場合はfalseを返す。
func adjacentInContext(bc model.BrowsingContext, current int64, intent Intent) (model.LocalEntryRef, bool) {
	idx := bc.IndexOf(current)
	if idx < 0 {
		return model.LocalEntryRef{}, false
	}

	target := idx + 1
	if intent == IntentPrevious {
		target = idx - 1
	}
	if target < 0 || target >= len(bc.LocalEntries) {
		return model.LocalEntryRef{}, false
	}
	return bc.LocalEntries[target], true
}

// AdjacentLocalID はID順で隣接するダウンロード済み記事を返す。
// Previousは現在より小さいIDのうち最大のもの、Nextは現在より大きいIDのうち最小のもの。
// 閲覧コンテキストの範囲は考慮せず、公開日時ではなくIDで隣接を判定する。
// idsの並び順は問わない。候補がない場合はfalseを返す。
func AdjacentLocalID(ids []int64, current int64, intent Intent) (int64, bool) {
	var best int64
	found := false
	for _, id := range ids {
		switch intent {
		case IntentPrevious:
			if id < current && (!found || id > best) {
				best, found = id, true
			}
		case IntentNext:
			if id > current && (!found || id < best) {
				best, found = id, true
			}
		}
	}
	return best, found
}
