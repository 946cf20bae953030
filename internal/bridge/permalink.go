package bridge

import "fmt"

// Permalink строит ссылку на сообщение: публичную по username, иначе
// внутреннюю вида https://t.me/c/<chat_id>/<id>. chatID передаётся как есть
// (помеченный id, например -1001234567890).
func Permalink(username string, chatID int64, msgID int) string {
	if username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", username, msgID)
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", chatID, msgID)
}
