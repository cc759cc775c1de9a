package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// cities.json：对象数组；坐标必需，名称至少一个
const citiesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["lat", "lon"],
    "properties": {
      "lat": {"type": "number", "minimum": -90, "maximum": 90},
      "lon": {"type": "number", "minimum": -180, "maximum": 180},
      "importance": {"type": "number", "minimum": 0},
      "score": {"type": "number", "minimum": 0},
      "country_code": {"type": "string"},
      "cc": {"type": "string"}
    },
    "anyOf": [
      {"required": ["name_en"]}, {"required": ["en"]}, {"required": ["name"]},
      {"required": ["name_zh"]}, {"required": ["zh"]}
    ]
  }
}`

// country_meta.json：以国家代码为键；面积/人口为非负数，标注点需成对出现
const metaSchema = `{
  "type": "object",
  "propertyNames": {"pattern": "^[A-Za-z]{2,3}$"},
  "additionalProperties": {
    "type": "object",
    "properties": {
      "NAME_EN": {"type": "string"},
      "NAME_ZH": {"type": "string"},
      "AREA_KM2": {"type": ["number", "null"], "minimum": 0},
      "POP_EST": {"type": ["number", "null"], "minimum": 0},
      "LABEL_LON": {"type": "number", "minimum": -180, "maximum": 180},
      "LABEL_LAT": {"type": "number", "minimum": -90, "maximum": 90}
    },
    "dependencies": {"LABEL_LON": ["LABEL_LAT"], "LABEL_LAT": ["LABEL_LON"]}
  }
}`

var (
	citiesValidator = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(citiesSchema))
	})
	metaValidator = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(metaSchema))
	})
)

// ValidateCitiesJSON 按结构约束校验城市文件内容
func ValidateCitiesJSON(data []byte) error {
	return validate(citiesValidator, data)
}

// ValidateMetaJSON 按结构约束校验国家元数据文件内容
func ValidateMetaJSON(data []byte) error {
	return validate(metaValidator, data)
}

func validate(compile func() (*gojsonschema.Schema, error), data []byte) error {
	s, err := compile()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if res.Valid() {
		return nil
	}
	errs := make([]error, 0, len(res.Errors()))
	for _, d := range res.Errors() {
		errs = append(errs, errors.New(d.String()))
	}
	return errors.Join(errs...)
}

// 文档注释：校验数据目录中的可选 JSON 文件
// 背景：加载时对非法条目是静默丢弃的，上线前用离线工具把这些问题一次性列出来。
// 约束：文件不存在视为通过；返回以文件名为前缀的错误集合。
func ValidateDir(dir string) error {
	var errs []error
	for name, check := range map[string]func([]byte) error{
		CitiesFile: ValidateCitiesJSON,
		MetaFile:   ValidateMetaJSON,
	} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := check(b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
