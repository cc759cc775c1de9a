package iplocate

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"

	"globe-api/internal/logger"
)

type ipdbMeta struct {
	Build     int64          `json:"build"`
	IPVersion uint16         `json:"ip_version"`
	Languages map[string]int `json:"languages"`
	NodeCount int            `json:"node_count"`
	TotalSize int            `json:"total_size"`
	Fields    []string       `json:"fields"`
}

// 文档注释：IPIP IPDB 数据源
// 背景：文件头为 4 字节（BE）元信息长度 + JSON 元信息，之后是二叉前缀树节点（每节点左右各 4 字节）与叶子数据；
// 节点值大于 node_count 即为叶子，叶子为“长度(uint16 BE) + 制表符分隔字段”。
// 约束：整文件读入内存，只读；只支持 IPv4 查询；目标语言缺失时回退到最小偏移。
type IPDB struct {
	meta     ipdbMeta
	data     []byte
	v4offset int
	langOff  int
}

func OpenIPDB(path, lang string) (*IPDB, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, errors.New("bad ipdb size")
	}
	mlen := int(binary.BigEndian.Uint32(body[0:4]))
	if len(body) < 4+mlen {
		return nil, errors.New("bad ipdb meta")
	}
	var m ipdbMeta
	if err := json.Unmarshal(body[4:4+mlen], &m); err != nil {
		return nil, err
	}
	if len(m.Languages) == 0 || len(m.Fields) == 0 {
		return nil, errors.New("bad ipdb meta fields")
	}
	if len(body) != 4+mlen+m.TotalSize {
		return nil, errors.New("bad ipdb total size")
	}
	db := &IPDB{meta: m, data: body[4+mlen:]}
	db.langOff = languageOffset(m.Languages, lang)
	// IPv4 根：::ffff:0:0/96，前 80 位为 0，随后 16 位为 1
	node := 0
	for i := 0; i < 96 && node < m.NodeCount; i++ {
		bit := 0
		if i >= 80 {
			bit = 1
		}
		node = db.readNode(node, bit)
	}
	db.v4offset = node
	logger.L().Debug("ipdb_ready", "build", m.Build, "nodes", m.NodeCount, "v4offset", node, "lang_offset", db.langOff)
	return db, nil
}

func languageOffset(langs map[string]int, lang string) int {
	if off, ok := langs[lang]; ok {
		return off
	}
	have, min := false, 0
	for _, v := range langs {
		if !have || v < min {
			min, have = v, true
		}
	}
	return min
}

func (db *IPDB) readNode(node, index int) int {
	off := node*8 + index*4
	if off+4 > len(db.data) {
		return node
	}
	return int(binary.BigEndian.Uint32(db.data[off : off+4]))
}

func (db *IPDB) resolve(node int) ([]byte, error) {
	resolved := node - db.meta.NodeCount + db.meta.NodeCount*8
	if resolved+2 > len(db.data) {
		return nil, errors.New("resolve out of range")
	}
	size := int(binary.BigEndian.Uint16(db.data[resolved : resolved+2]))
	if resolved+2+size > len(db.data) {
		return nil, errors.New("resolve size")
	}
	return db.data[resolved+2 : resolved+2+size], nil
}

func (db *IPDB) Lookup(ip string) (Result, bool) {
	v4 := net.ParseIP(ip).To4()
	if v4 == nil {
		return Result{}, false
	}
	node := db.v4offset
	for i := 0; i < 32 && node <= db.meta.NodeCount; i++ {
		node = db.readNode(node, int(v4[i>>3]>>(7-uint(i%8)))&1)
	}
	if node <= db.meta.NodeCount {
		return Result{}, false
	}
	raw, err := db.resolve(node)
	if err != nil {
		return Result{}, false
	}
	parts := strings.Split(string(raw), "\t")
	begin, end := db.langOff, db.langOff+len(db.meta.Fields)
	if end > len(parts) {
		end = len(parts)
	}
	if begin >= end {
		return Result{}, false
	}
	out := Result{Source: "ipip"}
	for i, v := range parts[begin:end] {
		v = strings.TrimSpace(v)
		switch db.meta.Fields[i] {
		case "country_name":
			out.Country = v
		case "region_name", "province_name":
			if out.Region == "" {
				out.Region = v
			}
		case "city_name":
			out.City = v
		case "country_code":
			out.CountryCode = strings.ToUpper(v)
		}
	}
	if out.Country == "" && out.CountryCode == "" {
		return Result{}, false
	}
	return out, true
}
