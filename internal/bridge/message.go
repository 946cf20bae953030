// Package bridge задаёт общий для обоих бэкендов интерфейс клиента и
// сообщения, а также нормализованные типы, которыми они обмениваются:
// вложения, опросы, клавиатуры, ссылки на файлы, пиры.
//
// Конкретные варианты живут в internal/adapters/telegram/{gotd,gogram};
// диспетчер работает только с этим пакетом.
package bridge

// Sender — автор сообщения, если это пользователь.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	IsBot     bool
}

// Message — проекция нативного сообщения бэкенда только для чтения.
// Живёт не дольше события, из которого создана.
type Message interface {
	// Text — текст или подпись без разметки.
	Text() string
	// HTML — текст или подпись с разметкой сущностей в HTML.
	HTML() string
	// Sender возвращает автора, если это пользователь.
	Sender() (Sender, bool)
	// ChatID — помеченный id чата (каналы с префиксом -100).
	ChatID() int64
	ChatUsername() string
	ID() int
	ReplyToID() (int, bool)
	Permalink() string

	HasMedia() bool
	MediaType() MediaType
	MediaSize() (int64, bool)
	FileRef() (FileRef, bool)
	FileName() string
	MediaGroupID() (int64, bool)

	Poll() *Poll
	ReplyMarkup() *InlineKeyboard
}

// HasSender — удобная обёртка над Sender.
func HasSender(m Message) bool {
	_, ok := m.Sender()
	return ok
}
