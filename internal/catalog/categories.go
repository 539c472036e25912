package catalog

import "futuresflow/models"

func category(market, symbol, name string, tf models.TradingTimeFrameType) models.InstrumentCategory {
	return models.InstrumentCategory{Symbol: symbol, Name: name, MarketCode: market, TimeFrameType: tf}
}

var defaultCategories = []models.InstrumentCategory{
	// SHFE metals
	category(models.MarketSHFE, "cu", "沪铜", models.FuturesDayOvernight),
	category(models.MarketSHFE, "al", "沪铝", models.FuturesDayOvernight),
	category(models.MarketSHFE, "zn", "沪锌", models.FuturesDayOvernight),
	category(models.MarketSHFE, "pb", "沪铅", models.FuturesDayOvernight),
	category(models.MarketSHFE, "ni", "沪镍", models.FuturesDayOvernight),
	category(models.MarketSHFE, "sn", "沪锡", models.FuturesDayOvernight),
	category(models.MarketSHFE, "ss", "不锈钢", models.FuturesDayOvernight),
	category(models.MarketSHFE, "bc", "国际铜", models.FuturesDayOvernight),
	category(models.MarketSHFE, "au", "沪金", models.FuturesDayOvernightLong),
	category(models.MarketSHFE, "ag", "沪银", models.FuturesDayOvernightLong),
	category(models.MarketSHFE, "rb", "螺纹钢", models.FuturesDayNight),
	category(models.MarketSHFE, "wr", "线材", models.FuturesDayNight),
	category(models.MarketSHFE, "hc", "热卷板", models.FuturesDayNight),
	// SHFE energy and chemicals
	category(models.MarketSHFE, "sc", "原油", models.FuturesDayOvernightLong),
	category(models.MarketSHFE, "lu", "低硫燃料油", models.FuturesDayNight),
	category(models.MarketSHFE, "fu", "燃料油", models.FuturesDayNight),
	category(models.MarketSHFE, "bu", "石油沥青", models.FuturesDayNight),
	category(models.MarketSHFE, "sp", "纸浆", models.FuturesDayNight),
	category(models.MarketSHFE, "ru", "天然橡胶", models.FuturesDayNight),
	category(models.MarketSHFE, "nr", "20号胶", models.FuturesDayNight),

	// DCE agriculture
	category(models.MarketDCE, "c", "玉米", models.FuturesDayNight),
	category(models.MarketDCE, "cs", "玉米淀粉", models.FuturesDayNight),
	category(models.MarketDCE, "a", "黄大豆1号", models.FuturesDayNight),
	category(models.MarketDCE, "b", "黄大豆2号", models.FuturesDayNight),
	category(models.MarketDCE, "m", "豆粕", models.FuturesDayNight),
	category(models.MarketDCE, "y", "豆油", models.FuturesDayNight),
	category(models.MarketDCE, "p", "棕榈油", models.FuturesDayNight),
	category(models.MarketDCE, "fb", "纤维板", models.FuturesDayNight),
	category(models.MarketDCE, "bb", "胶合板", models.FuturesDayNight),
	category(models.MarketDCE, "jb", "鸡蛋", models.FuturesDayOnly),
	category(models.MarketDCE, "rr", "粳米", models.FuturesDayOnly),
	category(models.MarketDCE, "lh", "生猪", models.FuturesDayOnly),
	// DCE industrials
	category(models.MarketDCE, "l", "聚乙烯", models.FuturesDayNight),
	category(models.MarketDCE, "v", "聚氯乙烯", models.FuturesDayNight),
	category(models.MarketDCE, "pp", "聚丙烯", models.FuturesDayNight),
	category(models.MarketDCE, "j", "焦炭", models.FuturesDayNight),
	category(models.MarketDCE, "jm", "焦煤", models.FuturesDayNight),
	category(models.MarketDCE, "i", "铁矿石", models.FuturesDayNight),
	category(models.MarketDCE, "eg", "乙二醇", models.FuturesDayNight),
	category(models.MarketDCE, "eb", "苯乙烯", models.FuturesDayNight),
	category(models.MarketDCE, "pg", "液化石油气", models.FuturesDayNight),

	// CZCE
	category(models.MarketCZCE, "WH", "强麦", models.FuturesDayOnly),
	category(models.MarketCZCE, "PM", "普麦", models.FuturesDayOnly),
	category(models.MarketCZCE, "RI", "早籼稻", models.FuturesDayOnly),
	category(models.MarketCZCE, "JR", "粳稻", models.FuturesDayOnly),
	category(models.MarketCZCE, "LR", "晚籼稻", models.FuturesDayOnly),
	category(models.MarketCZCE, "CF", "棉花", models.FuturesDayNight),
	category(models.MarketCZCE, "SR", "白糖", models.FuturesDayNight),
	category(models.MarketCZCE, "OI", "菜籽油", models.FuturesDayNight),
	category(models.MarketCZCE, "RS", "油菜籽", models.FuturesDayNight),
	category(models.MarketCZCE, "RM", "菜籽粕", models.FuturesDayNight),
	category(models.MarketCZCE, "CY", "棉纱", models.FuturesDayNight),
	category(models.MarketCZCE, "AP", "苹果", models.FuturesDayOnly),
	category(models.MarketCZCE, "CJ", "红枣", models.FuturesDayOnly),
	category(models.MarketCZCE, "PK", "花生", models.FuturesDayOnly),
	category(models.MarketCZCE, "TA", "PTA", models.FuturesDayNight),
	category(models.MarketCZCE, "MA", "甲醇", models.FuturesDayNight),
	category(models.MarketCZCE, "FG", "玻璃", models.FuturesDayNight),
	category(models.MarketCZCE, "ZC", "动力煤", models.FuturesDayNight),
	category(models.MarketCZCE, "SF", "硅铁", models.FuturesDayOnly),
	category(models.MarketCZCE, "SM", "锰硅", models.FuturesDayOnly),
	category(models.MarketCZCE, "UA", "尿素", models.FuturesDayOnly),
	category(models.MarketCZCE, "SA", "纯碱", models.FuturesDayNight),
	category(models.MarketCZCE, "PF", "短纤", models.FuturesDayNight),
}
