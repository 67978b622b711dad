package i18n

// catalogEN holds remediation text keyed by rule code.
var catalogEN = map[string]string{
	// generic
	"parse_error":  "fix the syntax error reported at this position",
	"invalid_type": "invalid type",
	"schema-size":  "split the schema or raise max_schema_size_bytes",
	"schema-parse": "make both schema versions parse before checking compatibility",
	"rule-failure": "the custom rule failed; check its implementation",

	"instance-size":        "shrink the instance or raise max_schema_size_bytes",
	"unsupported-format":   "use json-schema, avro or protobuf",
	"validation-cancelled": "the caller cancelled the validation; retry with a longer deadline",
	"compatibility":        "use one of NONE, BACKWARD, FORWARD, FULL or their _TRANSITIVE variants",

	// security and performance
	"security-recursion-depth":      "reduce nesting below {limit} levels, for example by extracting definitions",
	"security-denylist":             "remove or rename the flagged token",
	"performance-pattern-length":    "shorten the regular expression or split it into several constraints",
	"performance-nested-quantifier": "avoid nested quantifiers such as (a+)+, which can backtrack exponentially",
	"performance-deep-nesting":      "flatten the schema; deep nesting is slow to validate",
	"performance-complexity":        "the schema is large; consider splitting it",

	// JSON Schema
	"json-schema-parse":       "the schema must be a single valid JSON document",
	"json-schema-structure":   "the root of a JSON Schema must be an object or a boolean",
	"json-schema-meta":        "the schema does not conform to its meta-schema; check the keyword value",
	"json-schema-draft":       "declare $schema as draft-07, 2019-09 or 2020-12",
	"json-schema-ref":         "only local references (#/...) can be resolved; inline the referenced schema",
	"json-schema-id":          "use an absolute http, https or urn identifier for $id",
	"json-duplicate-key":      "remove the duplicate key; only the last value is kept",
	"type-validation":         "'{type}' is not a JSON Schema type; use null, boolean, object, array, number, string or integer",
	"semantic-validation":     "add '{field}' to properties or remove it from required",
	"conflicting-constraints": "make the lower bound less than or equal to the upper bound",
	"deprecated-keyword":      "replace the keyword with its current equivalent",
	"missing-type":            "declare a type so readers know what to expect",
	"missing-description":     "add a description",
	"missing-examples":        "add examples to document typical values",
	"instance-parse":          "the instance must be valid JSON",
	"instance-validation":     "change the instance to satisfy the schema keyword",

	"json-schema-type":                  "keep the type or widen it (integer to number)",
	"json-schema-constraint":            "do not tighten constraints on existing fields",
	"json-schema-enum":                  "keep existing enum values",
	"json-schema-field-removed":         "keep the field or make it optional first",
	"json-schema-required":              "give the new required field a default or make it optional",
	"json-schema-additional-properties": "keep additionalProperties open",
	"json-schema-items":                 "keep the array item schema compatible",
	"json-schema-unclassified":          "review this change by hand; it cannot be classified automatically",

	// Avro
	"avro-parse":                  "the schema must be valid JSON: a type name, an object or a union array",
	"avro-unknown-type":           "define '{type}' before it is used or fix the type name",
	"avro-invalid-name":           "'{name}' must start with a letter or underscore followed by letters, digits or underscores",
	"avro-empty-record":           "add at least one field",
	"avro-duplicate-field":        "rename one of the '{field}' fields",
	"avro-empty-enum":             "add at least one symbol",
	"avro-duplicate-symbol":       "remove the duplicate symbol",
	"avro-single-union":           "replace the single-branch union with its branch type",
	"avro-nested-union":           "flatten the nested union into its parent",
	"avro-duplicate-union-branch": "a union may contain '{type}' only once",
	"avro-zero-size-fixed":        "use a positive size for fixed types",
	"avro-redefined-name":         "rename one of the '{name}' definitions or reference the first one",
	"avro-invalid-default":        "change the default of '{field}' to match the first type of the field",
	"avro-enum-default":           "the enum default must be one of its symbols",
	"avro-logical-type":           "check the logical type against its underlying type",
	"avro-naming-convention":      "use PascalCase for type names and camelCase or snake_case for fields",
	"avro-reserved-field-name":    "rename '{field}'; it collides with an Avro keyword",
	"avro-missing-doc":            "add a doc attribute",

	"avro-type":            "use a type the reader can promote from the writer type",
	"avro-union":           "keep every writer branch readable by the reader union",
	"avro-name":            "add the previous name as an alias",
	"avro-namespace":       "add the previous full name as an alias",
	"avro-fixed-size":      "keep the fixed size",
	"avro-array-items":     "keep array items compatible",
	"avro-map-values":      "keep map values compatible",
	"avro-missing-default": "give the new field a default value",
	"avro-field-removed":   "give the field a default before removing it",
	"avro-enum-symbol":     "keep the symbol or give the reader enum a default",

	// Protobuf
	"protobuf-syntax":                 "fix the syntax error; the file must be valid proto2 or proto3",
	"protobuf-missing-syntax":         "add syntax = \"proto3\"; as the first statement",
	"protobuf-syntax-position":        "move the syntax statement to the top of the file",
	"protobuf-missing-package":        "declare a package to avoid name clashes",
	"protobuf-package-naming":         "use lowercase, dot separated package names",
	"protobuf-no-messages":            "define at least one message",
	"protobuf-field-number":           "field number {number} is out of range; use 1 to 536870911",
	"protobuf-reserved-range":         "numbers 19000 to 19999 are reserved; pick another number than {number}",
	"protobuf-map-key":                "map keys must be integral or string scalars",
	"protobuf-unknown-type":           "define or import '{type}'",
	"protobuf-duplicate-field-number": "give each field a unique number",
	"protobuf-duplicate-field-name":   "rename one of the '{field}' fields",
	"protobuf-reserved-conflict":      "use a number and name that are not reserved",
	"protobuf-reserved-invalid":       "reserved ranges must start at 1 or above and end after they start",
	"protobuf-required-in-proto3":     "remove the required label",
	"protobuf-enum-empty":             "add at least one enum value",
	"protobuf-enum-zero":              "make the first enum value 0, conventionally *_UNSPECIFIED",
	"protobuf-duplicate-enum-value":   "use distinct numbers or set option allow_alias = true",
	"protobuf-message-naming":         "rename '{name}' to PascalCase",
	"protobuf-enum-naming":            "rename '{name}' to PascalCase",
	"protobuf-field-naming":           "rename '{field}' to snake_case",
	"protobuf-enum-value-naming":      "use UPPER_SNAKE_CASE for enum values",

	"protobuf-message-removed":     "keep the message or deprecate it",
	"protobuf-field-removed":       "reserve the number and name of removed fields",
	"protobuf-field-renamed":       "renaming is wire compatible but breaks JSON and text formats",
	"protobuf-field-number-reused": "never reuse a field number; reserve it and use a new one",
	"protobuf-reserved-reused":     "pick a number and name that were never reserved",
	"protobuf-type-changed":        "keep the type or change within a wire compatible group",
	"protobuf-field-made-required": "new required fields break old writers",
	"protobuf-required-added":      "avoid required fields; use optional instead",
	"protobuf-cardinality":         "keep the field repeated or singular",
	"protobuf-oneof":               "do not move existing fields into or out of a oneof",
	"protobuf-enum-value-removed":  "reserve removed enum numbers and names",

	"schema-format": "a subject cannot change its schema format",
}

// catalogJA holds the Japanese remediation text; missing codes fall back to
// no suggestion.
var catalogJA = map[string]string{
	"parse_error":  "示された位置の構文エラーを修正してください",
	"invalid_type": "型が不正です",
	"schema-size":  "スキーマを分割するか max_schema_size_bytes を引き上げてください",
	"schema-parse": "互換性チェックの前に両方のスキーマを解析可能にしてください",
	"rule-failure": "カスタムルールが失敗しました。実装を確認してください",

	"unsupported-format": "json-schema、avro、protobuf のいずれかを指定してください",

	"security-recursion-depth":      "ネストを {limit} 階層未満にしてください",
	"security-denylist":             "禁止されたトークンを削除または名前変更してください",
	"performance-pattern-length":    "正規表現を短くしてください",
	"performance-nested-quantifier": "(a+)+ のような入れ子の量指定子は避けてください",
	"performance-deep-nesting":      "スキーマを平坦化してください",
	"performance-complexity":        "スキーマが大きいため分割を検討してください",

	"json-schema-parse":       "スキーマは単一の有効な JSON でなければなりません",
	"json-schema-structure":   "JSON Schema のルートはオブジェクトまたは真偽値でなければなりません",
	"json-schema-meta":        "メタスキーマに適合していません。キーワードの値を確認してください",
	"json-schema-draft":       "$schema には draft-07、2019-09、2020-12 のいずれかを指定してください",
	"json-schema-ref":         "ローカル参照 (#/...) のみ解決できます",
	"json-schema-id":          "$id には http、https、urn の絶対識別子を使用してください",
	"json-duplicate-key":      "重複したキーを削除してください",
	"type-validation":         "'{type}' は JSON Schema の型ではありません",
	"semantic-validation":     "'{field}' を properties に追加するか required から削除してください",
	"conflicting-constraints": "下限を上限以下にしてください",
	"deprecated-keyword":      "現行のキーワードに置き換えてください",
	"missing-type":            "type を宣言してください",
	"missing-description":     "description を追加してください",
	"missing-examples":        "examples を追加してください",
	"instance-parse":          "インスタンスは有効な JSON でなければなりません",
	"instance-validation":     "スキーマを満たすようにインスタンスを修正してください",

	"avro-parse":           "スキーマは有効な JSON でなければなりません",
	"avro-unknown-type":    "'{type}' を使用前に定義してください",
	"avro-invalid-name":    "'{name}' は英字またはアンダースコアで始めてください",
	"avro-duplicate-field": "'{field}' フィールドの一方を名前変更してください",
	"avro-invalid-default": "'{field}' のデフォルト値を型に合わせてください",
	"avro-missing-default": "新しいフィールドにデフォルト値を設定してください",
	"avro-missing-doc":     "doc 属性を追加してください",

	"protobuf-syntax":              "構文エラーを修正してください",
	"protobuf-missing-syntax":      "先頭に syntax = \"proto3\"; を追加してください",
	"protobuf-unknown-type":        "'{type}' を定義またはインポートしてください",
	"protobuf-field-number":        "フィールド番号 {number} は範囲外です",
	"protobuf-message-naming":      "'{name}' を PascalCase にしてください",
	"protobuf-field-naming":        "'{field}' を snake_case にしてください",
	"protobuf-field-number-reused": "フィールド番号を再利用せず、reserved にしてください",

	"schema-format": "サブジェクトのスキーマ形式は変更できません",
}
