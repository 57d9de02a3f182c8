package extract

// Curated surface forms for the keyword strategy. Matching is whole-word and
// case-insensitive for techKeywords, exact substring for cjkConceptTerms.
var techKeywords = []string{
	"Python", "Pandas", "NumPy", "Matplotlib", "Seaborn", "Scikit-learn",
	"TensorFlow", "PyTorch", "Django", "Flask", "FastAPI", "React", "Vue",
	"JavaScript", "TypeScript", "Java", "C++", "Go", "Rust", "SQL",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "Docker", "Kubernetes",
	"Git", "GitHub", "AWS", "Azure", "GCP", "Linux", "API", "REST",
	"GraphQL", "Machine Learning", "Deep Learning", "AI", "NLP", "CV",
}

var cjkConceptTerms = []string{
	"数据分析", "机器学习", "深度学习", "人工智能", "数据库",
	"前端", "后端", "全栈", "开发", "编程", "算法", "架构",
	"微服务", "容器化", "云计算", "大数据", "数据挖掘",
}
