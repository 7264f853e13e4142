package device

import "strings"

// appAliases is the fixed mapping of human aliases (Chinese and ASCII) to
// package identifiers. Extend as new app targets are needed;
// this is process-wide, initialised once, and never mutated at runtime.
var appAliases = map[string]string{
	"淘宝":     "com.taobao.taobao",
	"taobao": "com.taobao.taobao",
	"美团":     "com.sankuai.meituan",
	"meituan": "com.sankuai.meituan",
	"微信":     "com.tencent.mm",
	"wechat": "com.tencent.mm",
	"支付宝":    "com.eg.android.AlipayGphone",
	"alipay": "com.eg.android.AlipayGphone",
	"抖音":     "com.ss.android.ugc.aweme",
	"douyin": "com.ss.android.ugc.aweme",
	"tiktok": "com.ss.android.ugc.aweme",
	"微博":     "com.sina.weibo",
	"weibo":  "com.sina.weibo",
	"小红书":    "com.xingin.xhs",
	"xiaohongshu": "com.xingin.xhs",
	"京东":     "com.jingdong.app.mall",
	"jd":     "com.jingdong.app.mall",
	"设置":     "com.android.settings",
	"settings": "com.android.settings",
	"相机":     "com.android.camera2",
	"camera": "com.android.camera2",
	"浏览器":    "com.android.browser",
	"browser": "com.android.browser",
}

// ResolvePackage accepts either a package name (detected by presence of a
// '.') or a known alias, returning the package identifier to launch.
// Unknown aliases are a validation error with a user-facing message.
func ResolvePackage(packageOrAlias string) (string, error) {
	if strings.Contains(packageOrAlias, ".") {
		return packageOrAlias, nil
	}

	if pkg, ok := appAliases[packageOrAlias]; ok {
		return pkg, nil
	}
	if pkg, ok := appAliases[strings.ToLower(packageOrAlias)]; ok {
		return pkg, nil
	}

	return "", NewError(ErrUnknownPackage, "unknown app alias %q: not a package and not in the alias table", packageOrAlias)
}
