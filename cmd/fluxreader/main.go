// Command fluxreader はMiniflux向けの閲覧クライアント。
//
//	fluxreader [serve]            ローカル閲覧サーバーを起動する
//	fluxreader next <id|path>     次の記事を開く
//	fluxreader previous <id|path> 前の記事を開く
//	fluxreader download <id|path> 記事をダウンロードする
//	fluxreader prune              保持期間を超えた記事を削除する
//	fluxreader healthcheck        起動中のサーバーを確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/fluxreader/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fluxreader:", err)
		os.Exit(1)
	}
}
