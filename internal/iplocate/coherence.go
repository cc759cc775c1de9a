package iplocate

import "strings"

var chinaProvinces = []string{
	"广东", "浙江", "上海", "北京", "江苏", "山东", "河南", "河北", "湖南", "湖北",
	"福建", "安徽", "江西", "辽宁", "吉林", "黑龙江", "云南", "贵州", "四川", "重庆",
	"天津", "山西", "内蒙古", "广西", "海南", "宁夏", "新疆", "西藏", "青海", "甘肃",
	"陕西", "香港", "澳门", "台湾",
}

var chinaCountries = map[string]bool{
	"CN": true, "CHN": true, "HK": true, "HKG": true, "MO": true, "MAC": true, "TW": true, "TWN": true,
	"中国": true, "CHINA": true, "香港": true, "澳门": true, "台湾": true,
}

// 文档注释：地区与国家的一致性
// 背景：部分库的条目国家字段缺失或错误（如 "0"、海外节点却带国内省份），省市明显属于中国而国家不是时，
// 该结果不可信，链式定位继续尝试下一个数据源。
// 约束：省级词典覆盖主要场景，不追求穷尽；国家字段为空视为一致（只有地区名时仍可用）。
func coherent(r Result) bool {
	if r.CountryCode == "" && r.Country == "" {
		return true
	}
	if !chinaLike(r.Region) && !chinaLike(r.City) {
		return true
	}
	return chinaCountries[strings.ToUpper(r.CountryCode)] || chinaCountries[strings.ToUpper(r.Country)]
}

func chinaLike(s string) bool {
	if s == "" {
		return false
	}
	for _, p := range chinaProvinces {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return strings.HasSuffix(s, "省") || strings.HasSuffix(s, "自治区") || strings.HasSuffix(s, "特别行政区")
}
