package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/fluxreader/internal/navigation"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はローカルの閲覧サーバーを起動することを示す。
	CommandServe Command = "serve"
	// CommandNext は指定記事の次の記事へ移動することを示す。
	CommandNext Command = "next"
	// CommandPrevious は指定記事の前の記事へ移動することを示す。
	CommandPrevious Command = "previous"
	// CommandDownload は指定記事をダウンロードすることを示す。
	CommandDownload Command = "download"
	// CommandPrune は保持期間を超えたダウンロード済み記事を削除することを示す。
	CommandPrune Command = "prune"
	// CommandHealthcheck は起動中のサーバーのヘルスチェックを実行することを示す。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析し、残りの引数とともに返す。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandNext, CommandPrevious, CommandDownload, CommandPrune, CommandHealthcheck:
		return cmd, args[1:]
	default:
		return CommandServe, nil
	}
}

// Intent はナビゲーション系コマンドの移動方向を返す。
func (c Command) Intent() (navigation.Intent, bool) {
	switch c {
	case CommandNext:
		return navigation.IntentNext, true
	case CommandPrevious:
		return navigation.IntentPrevious, true
	default:
		return 0, false
	}
}

// ParseEntryRef は記事IDまたはダウンロード済み記事のファイルパスを解析する。
// 数値の場合は記事IDとして、それ以外はパスとして扱う。
func ParseEntryRef(args []string) (navigation.EntryRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return navigation.EntryRef{}, fmt.Errorf("entry id or path is required")
	}

	arg := strings.TrimSpace(args[0])
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if id <= 0 {
			return navigation.EntryRef{}, fmt.Errorf("invalid entry id: %d", id)
		}
		return navigation.EntryRef{ID: id}, nil
	}
	return navigation.EntryRef{Path: arg}, nil
}
