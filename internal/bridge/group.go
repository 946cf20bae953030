package bridge

// GroupWindow — полуширина окна поиска альбома: альбом содержит не более
// десяти элементов, поэтому ±9 соседей вокруг якоря покрывают его целиком.
const GroupWindow = 9

// WindowIDs возвращает id окна [anchor-9, anchor+9], отсекая id < 1.
func WindowIDs(anchor int) ([]int, error) {
	if anchor <= 0 {
		return nil, ErrInvalidAnchor
	}
	lo := max(anchor-GroupWindow, 1)
	ids := make([]int, 0, anchor+GroupWindow-lo+1)
	for id := lo; id <= anchor+GroupWindow; id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

// SelectGroup находит якорь среди полученных сообщений по его настоящему id
// и возвращает сообщения с тем же group id в порядке получения. nil-элементы
// (удалённые или недоступные сообщения) пропускаются.
func SelectGroup(anchor int, fetched []Message) ([]Message, error) {
	if anchor <= 0 {
		return nil, ErrInvalidAnchor
	}
	var (
		groupID int64
		found   bool
	)
	for _, m := range fetched {
		if m != nil && m.ID() == anchor {
			groupID, found = m.MediaGroupID()
			break
		}
	}
	if !found {
		return nil, ErrNoMediaGroup
	}

	out := make([]Message, 0, GroupWindow+1)
	for _, m := range fetched {
		if m == nil {
			continue
		}
		if id, ok := m.MediaGroupID(); ok && id == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

// SiblingsWithMedia — мягкий вариант для get_media_group_messages: если
// якорь не в альбоме, возвращается он сам (при наличии вложения).
func SiblingsWithMedia(anchor Message, fetched []Message) []Message {
	groupID, ok := anchor.MediaGroupID()
	if !ok {
		if anchor.HasMedia() {
			return []Message{anchor}
		}
		return nil
	}
	out := make([]Message, 0, GroupWindow+1)
	for _, m := range fetched {
		if m == nil || !m.HasMedia() {
			continue
		}
		if id, ok := m.MediaGroupID(); ok && id == groupID {
			out = append(out, m)
		}
	}
	return out
}
