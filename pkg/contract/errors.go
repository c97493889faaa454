package contract

import "errors"

// 最小错误分类（用于上层策略判定与日志分类）。
var (
	// ErrPrecondition: 运行前置条件不满足（三路输入句数不一致、成对输入缺失）。
	ErrPrecondition = errors.New("precondition violated")
	// ErrMalformed: 输入记录无法解析（对齐对不是两个整数、标签缺少 -<type>）。
	ErrMalformed = errors.New("malformed input")
	// ErrInvariantViolation: 领域不变量违例（例如 span 引用越界目标下标）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrSeqInvalid: 装配时句序不严格递增或词/标签长度不一致。
	ErrSeqInvalid = errors.New("sequence invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 调用参数非法（如分片数 < 1）。
	ErrInvalidInput = errors.New("invalid input")
)
