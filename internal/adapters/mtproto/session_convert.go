package mtproto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnknownSessionFormat возвращается, если формат сессии не распознан.
var ErrUnknownSessionFormat = errors.New("mtproto: неизвестный формат сессии")

// sessionParser пытается разобрать один из внешних форматов сессии.
type sessionParser func(raw []byte) (session.Data, error)

var sessionParsers = []sessionParser{
	parseTelethonAccount,
	parseTelethonRows,
	parseTelethonString,
}

// ImportSession приводит сессию к JSON-формату gotd.
// Поддерживаются JSON gotd, строковая сессия Telethon, экспорт таблицы sessions
// и JSON аккаунта с полем extra_params. Второе значение сообщает о конвертации.
func ImportSession(raw []byte) ([]byte, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("mtproto: пустая сессия")
	}

	var native struct {
		Version int `json:"Version"`
	}
	if json.Unmarshal(raw, &native) == nil && native.Version != 0 {
		return append([]byte(nil), raw...), false, nil
	}

	for _, parse := range sessionParsers {
		data, err := parse(raw)
		if err != nil {
			continue
		}
		out, err := encodeSession(data)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return nil, false, ErrUnknownSessionFormat
}

func parseTelethonAccount(raw []byte) (session.Data, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return session.Data{}, err
	}
	if account.ExtraParams == "" {
		return session.Data{}, errors.New("нет extra_params")
	}
	return parseTelethonString([]byte(account.ExtraParams))
}

func parseTelethonRows(raw []byte) (session.Data, error) {
	var rows []struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return session.Data{}, err
	}
	for _, row := range rows {
		if row.AuthKey == "" || row.ServerAddress == "" || row.Port == 0 {
			continue
		}
		return sessionFromKey(row.DCID, row.ServerAddress, row.Port, row.AuthKey)
	}
	return session.Data{}, errors.New("нет строк с ключом")
}

func parseTelethonString(raw []byte) (session.Data, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), "\"'")
	if s == "" {
		return session.Data{}, errors.New("пустая строка сессии")
	}
	data, err := session.TelethonSession(s)
	if err != nil {
		return session.Data{}, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if len(data.Config.DCOptions) == 0 && data.Addr != "" {
		if host, port, err := splitAddr(data.Addr); err == nil {
			data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
		}
	}
	return *data, nil
}

func sessionFromKey(dc int, host string, port int, keyHex string) (session.Data, error) {
	rawKey, err := hex.DecodeString(strings.Trim(strings.TrimSpace(keyHex), "\"'"))
	if err != nil {
		return session.Data{}, fmt.Errorf("auth_key: %w", err)
	}
	var key crypto.Key
	if len(rawKey) != len(key) {
		return session.Data{}, fmt.Errorf("auth_key: длина %d байт", len(rawKey))
	}
	copy(key[:], rawKey)
	id := key.WithID().ID

	return session.Data{
		Config: session.Config{
			ThisDC:    dc,
			DCOptions: []tg.DCOption{{ID: dc, IPAddress: host, Port: port}},
		},
		DC:        dc,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   append([]byte(nil), key[:]...),
		AuthKeyID: append([]byte(nil), id[:]...),
	}, nil
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func encodeSession(data session.Data) ([]byte, error) {
	return json.Marshal(struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{Version: 1, Data: data})
}
