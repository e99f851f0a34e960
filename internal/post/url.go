package post

import (
	"net"
	"net/url"
)

// EnvDevelopment は開発環境を表すAPP_ENVの値。
const EnvDevelopment = "development"

// URLBuilder は投稿の正規URLを組み立てる。
type URLBuilder struct {
	base url.URL
}

// NewURLBuilder は実行環境に応じたURLBuilderを生成する。
// 開発環境では http://localhost:<port>、それ以外では https://www.<domain> を起点とする。
func NewURLBuilder(appEnv, domainName, port string) *URLBuilder {
	if appEnv == EnvDevelopment {
		return &URLBuilder{base: url.URL{Scheme: "http", Host: net.JoinHostPort("localhost", port)}}
	}
	return &URLBuilder{base: url.URL{Scheme: "https", Host: "www." + domainName}}
}

// PostURL は投稿IDの正規URLを返す。
func (b *URLBuilder) PostURL(postID string) string {
	u := b.base
	u.Path = "/post/" + postID
	return u.String()
}
