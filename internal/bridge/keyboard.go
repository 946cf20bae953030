package bridge

// InlineButton — кнопка inline-клавиатуры. Заполняется одно из URL/CallbackData.
type InlineButton struct {
	Text         string
	URL          string
	CallbackData []byte
}

// InlineKeyboard — разметка под сообщением, построчно.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// Empty сообщает, что в клавиатуре нет ни одной кнопки.
func (k *InlineKeyboard) Empty() bool {
	if k == nil {
		return true
	}
	for _, row := range k.Rows {
		if len(row) > 0 {
			return false
		}
	}
	return true
}
