package bridge

// MediaType — нормализованный тип вложения сообщения.
type MediaType int

const (
	MediaNone MediaType = iota
	MediaPhoto
	MediaVideo
	MediaAnimation
	MediaAudio
	MediaVoice
	MediaVideoNote
	MediaDocument
	MediaSticker
	MediaPoll
	MediaContact
	MediaLocation
	MediaVenue
	MediaGame
)

var mediaTypeNames = [...]string{
	MediaNone:      "none",
	MediaPhoto:     "photo",
	MediaVideo:     "video",
	MediaAnimation: "animation",
	MediaAudio:     "audio",
	MediaVoice:     "voice",
	MediaVideoNote: "video_note",
	MediaDocument:  "document",
	MediaSticker:   "sticker",
	MediaPoll:      "poll",
	MediaContact:   "contact",
	MediaLocation:  "location",
	MediaVenue:     "venue",
	MediaGame:      "game",
}

func (t MediaType) String() string {
	if t < 0 || int(t) >= len(mediaTypeNames) {
		return "unknown"
	}
	return mediaTypeNames[t]
}

// MediaFlags — признаки вложения, собранные адаптером из нативного сообщения.
// Несколько признаков могут быть выставлены одновременно (например, видео
// также является документом); тип выбирает Classify.
//
// Document означает документ без более специфичного атрибута.
type MediaFlags struct {
	Photo     bool
	Video     bool
	Animation bool
	Audio     bool
	Voice     bool
	VideoNote bool
	Document  bool
	Sticker   bool
	Poll      bool
	Contact   bool
	Location  bool
	Venue     bool
	Game      bool
}

// Classify применяет фиксированную цепочку приоритетов: первое совпадение побеждает.
func (f MediaFlags) Classify() MediaType {
	chain := [...]struct {
		set bool
		t   MediaType
	}{
		{f.Photo, MediaPhoto},
		{f.Video, MediaVideo},
		{f.Animation, MediaAnimation},
		{f.Audio, MediaAudio},
		{f.Voice, MediaVoice},
		{f.VideoNote, MediaVideoNote},
		{f.Document, MediaDocument},
		{f.Sticker, MediaSticker},
		{f.Poll, MediaPoll},
		{f.Contact, MediaContact},
		{f.Location, MediaLocation},
		{f.Venue, MediaVenue},
		{f.Game, MediaGame},
	}
	for _, c := range chain {
		if c.set {
			return c.t
		}
	}
	return MediaNone
}

// InputKind — тип элемента альбома для повторной отправки.
type InputKind string

const (
	InputPhoto    InputKind = "photo"
	InputVideo    InputKind = "video"
	InputAudio    InputKind = "audio"
	InputDocument InputKind = "document"
)

// InputKindFor сопоставляет тип вложения с типом элемента альбома.
// Кружки уходят как видео, голосовые как аудио. Остальное не поддерживается.
func InputKindFor(t MediaType) (InputKind, bool) {
	switch t {
	case MediaPhoto:
		return InputPhoto, true
	case MediaVideo, MediaVideoNote:
		return InputVideo, true
	case MediaAudio, MediaVoice:
		return InputAudio, true
	case MediaDocument:
		return InputDocument, true
	default:
		return "", false
	}
}

// InputMedia — скачанный в память элемент альбома.
type InputMedia struct {
	Kind     InputKind
	Data     []byte
	FileName string
	Caption  string
}

// DocumentAttrs — атрибуты документа, от которых зависит его тип.
type DocumentAttrs struct {
	Video    bool
	Round    bool
	Audio    bool
	Voice    bool
	Animated bool
	Sticker  bool
}

// Flags выставляет ровно один признак документа:
// стикер, анимация, кружок, видео, голосовое, аудио, иначе документ.
func (a DocumentAttrs) Flags() MediaFlags {
	var f MediaFlags
	switch {
	case a.Sticker:
		f.Sticker = true
	case a.Animated:
		f.Animation = true
	case a.Video && a.Round:
		f.VideoNote = true
	case a.Video:
		f.Video = true
	case a.Audio && a.Voice:
		f.Voice = true
	case a.Audio:
		f.Audio = true
	default:
		f.Document = true
	}
	return f
}
