package session

// Endpoint — адрес дата-центра.
type Endpoint struct {
	IP   string
	Port int
}

const dcPort = 443

var (
	productionDCs = map[int]string{
		1: "149.154.175.53",
		2: "149.154.167.51",
		3: "149.154.175.100",
		4: "149.154.167.91",
		5: "91.108.56.130",
	}
	testDCs = map[int]string{
		1: "149.154.175.10",
		2: "149.154.167.40",
		3: "149.154.175.117",
	}
)

// LookupDC возвращает адрес DC по номеру. Таблица статична, поэтому
// повторные вызовы с тем же dcID всегда дают одинаковый результат.
func LookupDC(dcID int, testMode bool) (Endpoint, error) {
	table := productionDCs
	if testMode {
		table = testDCs
	}
	ip, ok := table[dcID]
	if !ok {
		return Endpoint{}, formatErrorf("unknown data center %d (test=%v)", dcID, testMode)
	}
	return Endpoint{IP: ip, Port: dcPort}, nil
}

// LookupIP — обратный поиск: номер DC по адресу. Адреса продовых и тестовых
// DC не пересекаются, поэтому тестовый режим определяется однозначно.
func LookupIP(ip string) (dcID int, testMode bool, ok bool) {
	for id, addr := range productionDCs {
		if addr == ip {
			return id, false, true
		}
	}
	for id, addr := range testDCs {
		if addr == ip {
			return id, true, true
		}
	}
	return 0, false, false
}
